// Package source decodes upstream patent filing exports and normalizes each
// record into a core.Document.
//
// The accepted input is either the USPTO bulk export envelope
//
//	{"patentdata": [ {...}, {...} ]}
//
// or a bare JSON array of the same records. Normalize never fails on missing
// optional fields. A record without an application number, or one whose
// fields have the wrong JSON types, is rejected with an error wrapping
// core.ErrMalformedRecord; the rest of the file still loads.
package source
