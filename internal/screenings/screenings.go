// Package screenings derives screening groups from the flat ticket
// collection. It is pure: no I/O, no hidden state, deterministic output.
package screenings

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"festival-tickets/internal/models"
)

// FormatError reports a ticket date or start time that does not match the
// canonical DD-MM-YYYY / HH:MM AM/PM forms.
type FormatError struct {
	Field string
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s format: %q", e.Field, e.Value)
}

var timePattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(AM|PM)`)

// ParseTicketDateTime parses the canonical ticket date (DD-MM-YYYY, strictly
// day-month-year) and start time (12-hour clock with AM/PM) into a single
// point in time. The result is built from the explicit components in UTC so
// it is deterministic and timezone-naive; it is used for ordering and display
// only.
func ParseTicketDateTime(date, start string) (time.Time, error) {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return time.Time{}, &FormatError{Field: "date", Value: date}
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, &FormatError{Field: "date", Value: date}
	}

	m := timePattern.FindStringSubmatch(start)
	if m == nil {
		return time.Time{}, &FormatError{Field: "start", Value: start}
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	switch strings.ToUpper(m[3]) {
	case "PM":
		if hours != 12 {
			hours += 12
		}
	case "AM":
		if hours == 12 {
			hours = 0
		}
	}

	return time.Date(year, time.Month(month), day, hours, minutes, 0, 0, time.UTC), nil
}

// Aggregator groups tickets into screenings. The zero value is strict: a
// ticket whose date or start cannot be parsed fails the whole grouping with
// a FormatError. SkipInvalid switches to skip-and-report for deployments
// carrying historical bad rows.
type Aggregator struct {
	SkipInvalid bool

	// OnSkip is called for each ticket dropped under SkipInvalid.
	OnSkip func(ticket models.Ticket, err error)
}

// Group partitions tickets into screenings keyed by act|date|start (raw
// field values, pipe-joined, identical to the key the ingestion pipeline
// records) and returns them ascending by parsed date-time. Ties keep input
// order. Every non-skipped ticket appears in exactly one screening.
func (a Aggregator) Group(tickets []models.Ticket) ([]models.Screening, error) {
	groups := make(map[string][]models.Ticket)
	var keyOrder []string

	for _, t := range tickets {
		key := t.ScreeningKey()
		if _, seen := groups[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		groups[key] = append(groups[key], t)
	}

	screenings := make([]models.Screening, 0, len(keyOrder))
	for _, key := range keyOrder {
		members := groups[key]
		first := members[0]

		dt, err := ParseTicketDateTime(first.Date, first.Start)
		if err != nil {
			if a.SkipInvalid {
				if a.OnSkip != nil {
					for _, t := range members {
						a.OnSkip(t, err)
					}
				}
				continue
			}
			return nil, fmt.Errorf("screening %q: %w", key, err)
		}

		screenings = append(screenings, models.Screening{
			ID:          key,
			Act:         first.Act,
			Location:    first.Location,
			Date:        first.Date,
			Start:       first.Start,
			DateTime:    dt,
			Tickets:     members,
			TicketCount: len(members),
		})
	}

	sort.SliceStable(screenings, func(i, j int) bool {
		return screenings[i].DateTime.Before(screenings[j].DateTime)
	})

	return screenings, nil
}

// Group is the strict-mode convenience used by callers with no policy of
// their own.
func Group(tickets []models.Ticket) ([]models.Screening, error) {
	return Aggregator{}.Group(tickets)
}
