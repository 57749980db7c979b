package models

import "time"

// Screening is a derived grouping of tickets that share act, date and start.
// It is recomputed from the ticket collection on every read and never stored.
type Screening struct {
	ID          string    `json:"id"` // act|date|start
	Act         string    `json:"act"`
	Location    string    `json:"location"`
	Date        string    `json:"date"`
	Start       string    `json:"start"`
	DateTime    time.Time `json:"dateTime"`
	Tickets     []Ticket  `json:"tickets"`
	TicketCount int       `json:"ticketCount"`
}
