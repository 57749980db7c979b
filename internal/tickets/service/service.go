package tickets

import (
	"context"
	"fmt"

	"festival-tickets/internal/logger"
	"festival-tickets/internal/models"
	"festival-tickets/internal/screenings"
)

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	GetTicketsByScreeningKey(ctx context.Context, act, date, start string) ([]models.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
}

// TicketService serves the read side: ticket lookups and the derived
// screening views. Aggregation policy (strict vs skip-invalid) comes from
// the aggregator it is built with.
type TicketService struct {
	DB         TicketDBLayer
	Aggregator screenings.Aggregator
	Logger     *logger.Logger
}

func NewTicketService(db TicketDBLayer, skipInvalid bool, log *logger.Logger) *TicketService {
	agg := screenings.Aggregator{SkipInvalid: skipInvalid}
	if skipInvalid && log != nil {
		agg.OnSkip = func(t models.Ticket, err error) {
			log.Warn("SCREENINGS", fmt.Sprintf("skipping ticket %s with unparseable date/start: %v", t.ID, err))
		}
	}
	return &TicketService{DB: db, Aggregator: agg, Logger: log}
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket %s not found: %w", id, err)
	}
	return ticket, nil
}

// GetScreenings recomputes the screening grouping from the full ticket
// collection. Nothing here is cached: tickets are owned by storage and only
// referenced by the core.
func (s *TicketService) GetScreenings(ctx context.Context) ([]models.Screening, error) {
	tickets, err := s.DB.ListTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return s.Aggregator.Group(tickets)
}

// GetScreening returns one screening by its composite key parts.
func (s *TicketService) GetScreening(ctx context.Context, act, date, start string) (*models.Screening, error) {
	tickets, err := s.DB.GetTicketsByScreeningKey(ctx, act, date, start)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets for screening: %w", err)
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("no tickets found for screening %s|%s|%s", act, date, start)
	}

	grouped, err := s.Aggregator.Group(tickets)
	if err != nil {
		return nil, err
	}
	if len(grouped) != 1 {
		// Tickets fetched by key always share it; anything else is a data
		// integrity defect worth surfacing.
		return nil, fmt.Errorf("tickets for key %s|%s|%s grouped into %d screenings", act, date, start, len(grouped))
	}
	return &grouped[0], nil
}

func (s *TicketService) DeleteTicket(ctx context.Context, id string) error {
	if _, err := s.DB.GetTicketByID(ctx, id); err != nil {
		return fmt.Errorf("ticket %s not found: %w", id, err)
	}
	if err := s.DB.DeleteTicket(ctx, id); err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if s.Logger != nil {
		s.Logger.LogDatabase("DELETE", "tickets", fmt.Sprintf("ticket %s removed", id))
	}
	return nil
}
