package source

// Record is one filing in the upstream export shape.
type Record struct {
	ApplicationNumberText    string              `json:"applicationNumberText"`
	ApplicationMetaData      ApplicationMetaData `json:"applicationMetaData"`
	CorrespondenceAddressBag any                 `json:"correspondenceAddressBag,omitempty"`

	decodeErr error
}

// ApplicationMetaData holds the nested filing metadata.
type ApplicationMetaData struct {
	FilingDate                   string           `json:"filingDate"`
	EntityStatusData             EntityStatusData `json:"entityStatusData"`
	FirstInventorToFileIndicator any              `json:"firstInventorToFileIndicator"` // "Y"/"N" or a boolean, depending on export
	InventorBag                  []Inventor       `json:"inventorBag"`
}

// EntityStatusData carries the applicant's business entity status.
type EntityStatusData struct {
	BusinessEntityStatusCategory string `json:"businessEntityStatusCategory"`
}

// Inventor is one entry of the inventor bag.
type Inventor struct {
	InventorNameText string `json:"inventorNameText"`
}

