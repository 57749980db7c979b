package ratings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"festival-tickets/internal/models"
)

var ErrRatingNotFound = errors.New("rating not found")

type Storage struct {
	Bun *bun.DB
}

func NewStorage(db *bun.DB) *Storage {
	return &Storage{Bun: db}
}

// Upsert creates or replaces the caller's rating for an act. Each
// (user, act) pair holds at most one rating.
func (s *Storage) Upsert(ctx context.Context, userEmail, act string, stars int, comment string) (*models.Rating, error) {
	now := time.Now().UTC()

	existing := new(models.Rating)
	err := s.Bun.NewSelect().
		Model(existing).
		Where("user_email = ?", userEmail).
		Where("act = ?", act).
		Scan(ctx)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up rating: %w", err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		rating := &models.Rating{
			ID:        uuid.New().String(),
			UserEmail: userEmail,
			Act:       act,
			Rating:    stars,
			Comment:   comment,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := s.Bun.NewInsert().Model(rating).Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to insert rating: %w", err)
		}
		return rating, nil
	}

	existing.Rating = stars
	existing.Comment = comment
	existing.UpdatedAt = now
	if _, err := s.Bun.NewUpdate().
		Model(existing).
		Column("rating", "comment", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update rating: %w", err)
	}
	return existing, nil
}

// ListByAct returns all ratings for an act, newest first.
func (s *Storage) ListByAct(ctx context.Context, act string) ([]models.Rating, error) {
	var ratings []models.Rating
	err := s.Bun.NewSelect().
		Model(&ratings).
		Where("act = ?", act).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return ratings, nil
}

// Average computes the mean star rating and vote count for an act.
func (s *Storage) Average(ctx context.Context, act string) (models.RatingAverage, error) {
	var ratings []models.Rating
	err := s.Bun.NewSelect().
		Model(&ratings).
		Where("act = ?", act).
		Scan(ctx)
	if err != nil {
		return models.RatingAverage{}, fmt.Errorf("failed to load ratings: %w", err)
	}
	if len(ratings) == 0 {
		return models.RatingAverage{}, nil
	}

	sum := 0
	for _, r := range ratings {
		sum += r.Rating
	}
	return models.RatingAverage{
		Average: float64(sum) / float64(len(ratings)),
		Count:   len(ratings),
	}, nil
}

// Delete removes the caller's own rating for an act.
func (s *Storage) Delete(ctx context.Context, userEmail, act string) error {
	res, err := s.Bun.NewDelete().
		Model((*models.Rating)(nil)).
		Where("user_email = ?", userEmail).
		Where("act = ?", act).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete rating: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrRatingNotFound
	}
	return nil
}
