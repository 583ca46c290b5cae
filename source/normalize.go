package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/poiesic/patentindex/core"
)

// Normalize converts one source record into a Document with Attributes and
// DerivedText populated. Fingerprint, Id and QualityScore are left for
// core.Fingerprinted.
func Normalize(rec Record) (*core.Document, error) {
	if rec.decodeErr != nil {
		return nil, rec.decodeErr
	}
	appNo := strings.TrimSpace(rec.ApplicationNumberText)
	if appNo == "" {
		return nil, fmt.Errorf("%w: missing applicationNumberText", core.ErrMalformedRecord)
	}

	meta := rec.ApplicationMetaData
	inventors := make([]string, 0, len(meta.InventorBag))
	for _, inv := range meta.InventorBag {
		name := strings.TrimSpace(inv.InventorNameText)
		if name != "" {
			inventors = append(inventors, name)
		}
	}

	attrs := core.Attributes{
		ApplicationNumber:  appNo,
		FilingDate:         strings.TrimSpace(meta.FilingDate),
		EntityType:         strings.TrimSpace(meta.EntityStatusData.BusinessEntityStatusCategory),
		FirstInventorFlag:  scalarText(meta.FirstInventorToFileIndicator),
		Inventors:          inventors,
		CorrespondenceText: correspondenceText(rec.CorrespondenceAddressBag),
	}

	return &core.Document{
		Attributes:  attrs,
		DerivedText: core.Summarize(attrs),
	}, nil
}

// correspondenceText serializes the correspondence bag with sorted keys so
// the stored column is stable across runs.
func correspondenceText(bag any) string {
	if bag == nil {
		return "{}"
	}
	out, err := sonic.ConfigStd.MarshalToString(bag)
	if err != nil {
		return "{}"
	}
	return out
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
