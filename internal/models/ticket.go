package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is one physical festival ticket extracted from one PDF page.
// Date and Start keep the exact strings the vision model returned
// (DD-MM-YYYY and HH:MM AM/PM); screening grouping relies on them verbatim.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            string    `bun:"id,pk" json:"id"`
	Act           string    `bun:"act,notnull" json:"act"`
	Location      string    `bun:"location,notnull" json:"location"`
	Date          string    `bun:"date,notnull" json:"date"`
	Start         string    `bun:"start,notnull" json:"start"`
	QRCodeURL     string    `bun:"qr_code_url,notnull" json:"qrCodeUrl"`
	PDFURL        string    `bun:"pdf_url" json:"pdfUrl"`
	TransactionID string    `bun:"transaction_id" json:"transactionId,omitempty"`
	FestivalLink  string    `bun:"festival_link" json:"festivalLink,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// ScreeningKey is the grouping key shared by the ingestion pipeline and the
// screening aggregator: act|date|start, raw field values, pipe-joined.
func (t Ticket) ScreeningKey() string {
	return t.Act + "|" + t.Date + "|" + t.Start
}

// NewTicketFields carries the extracted values for a ticket about to be
// persisted. ID and CreatedAt are assigned by the storage layer.
type NewTicketFields struct {
	Act           string
	Location      string
	Date          string
	Start         string
	QRCodeURL     string
	PDFURL        string
	TransactionID string
	FestivalLink  string
}
