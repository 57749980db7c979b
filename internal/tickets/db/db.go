package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"festival-tickets/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// CreateTicket persists a new ticket, assigning its ID and CreatedAt.
func (d *DB) CreateTicket(ctx context.Context, fields models.NewTicketFields) (*models.Ticket, error) {
	ticket := models.Ticket{
		ID:            uuid.New().String(),
		Act:           fields.Act,
		Location:      fields.Location,
		Date:          fields.Date,
		Start:         fields.Start,
		QRCodeURL:     fields.QRCodeURL,
		PDFURL:        fields.PDFURL,
		TransactionID: fields.TransactionID,
		FestivalLink:  fields.FestivalLink,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := d.Bun.NewInsert().Model(&ticket).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListTickets returns every ticket, newest first.
func (d *DB) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// GetTicketsByScreeningKey returns the tickets of one screening, oldest
// first.
func (d *DB) GetTicketsByScreeningKey(ctx context.Context, act, date, start string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("act = ?", act).
		Where("date = ?", date).
		Where("start = ?", start).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) DeleteTicket(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
