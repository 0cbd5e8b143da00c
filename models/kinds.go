// Package models defines the records produced by the ingestion pipeline.
package models

import "fmt"

// RecordKind selects an export family and the schema used to normalize it.
type RecordKind string

const (
	KindVideos      RecordKind = "videos"
	KindProducts    RecordKind = "products"
	KindNewProducts RecordKind = "new-products"
	KindCreators    RecordKind = "creators"
)

// Kinds lists every supported record kind.
var Kinds = []RecordKind{KindVideos, KindProducts, KindNewProducts, KindCreators}

// Valid reports whether k is a known kind.
func (k RecordKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a user supplied string into a RecordKind.
func ParseKind(s string) (RecordKind, error) {
	k := RecordKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown record kind %q", s)
	}
	return k, nil
}

// ExportKey identifies one export file: a record kind over a time range label.
type ExportKey struct {
	Kind  RecordKind `json:"kind"`
	Range string     `json:"range"`
}

// FileName is the conventional on-disk name, e.g. "videos-7d.xlsx".
func (k ExportKey) FileName() string {
	return fmt.Sprintf("%s-%s.xlsx", k.Kind, k.Range)
}

func (k ExportKey) String() string {
	return fmt.Sprintf("%s-%s", k.Kind, k.Range)
}

// RawRow is one worksheet row as read from an export, before any typing.
type RawRow []string

// Sheet is the header row plus the data rows of an export's first worksheet.
type Sheet struct {
	Header RawRow
	Rows   []RawRow
}

// KindOf returns the kind a record belongs to. Products from the
// new-products export report KindProducts since both share one shape.
func KindOf(r Record) RecordKind {
	switch r.(type) {
	case VideoRecord, *VideoRecord:
		return KindVideos
	case ProductRecord, *ProductRecord:
		return KindProducts
	case CreatorRecord, *CreatorRecord:
		return KindCreators
	}
	return ""
}
