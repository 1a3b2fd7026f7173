package models

import "time"

// Layouts used for the dates stored in the document.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05"
)

// Document is the whole persisted state: the signer block and every contract.
type Document struct {
	Firmantes map[string]string `json:"firmantes"`
	Obras     []Obra            `json:"obras"`
}

// NewDocument returns a minimal valid document with the given signer block.
func NewDocument(firmantes map[string]string) Document {
	doc := Document{
		Firmantes: make(map[string]string, len(firmantes)),
		Obras:     []Obra{},
	}
	for k, v := range firmantes {
		doc.Firmantes[k] = v
	}
	return doc
}

// DocumentRow stores the serialized document in a SQL database. There is one
// row per document key; the body is the same pretty-printed JSON the file
// backend writes.
type DocumentRow struct {
	Key       string `gorm:"primaryKey;size:64"`
	Body      string `gorm:"type:longtext"`
	UpdatedAt time.Time
}

// TableName pins the table name regardless of naming strategy.
func (DocumentRow) TableName() string { return "documents" }
