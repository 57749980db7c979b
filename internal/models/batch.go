package models

// PageResult is the per-page outcome of one ingestion batch. TicketID and
// ScreeningKey are empty when the page failed.
type PageResult struct {
	TicketID     string `json:"ticketId"`
	ScreeningKey string `json:"screeningKey"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// BatchSummary is the result of processing every page of an ingestion batch.
// Tickets preserves input page order, interleaving successes and failures.
type BatchSummary struct {
	TotalPages int          `json:"totalPages"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Tickets    []PageResult `json:"tickets"`
}
