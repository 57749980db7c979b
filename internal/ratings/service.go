package ratings

import (
	"context"
	"fmt"

	"festival-tickets/internal/logger"
	"festival-tickets/internal/models"
)

// RatingStore is the persistence surface the service needs.
type RatingStore interface {
	Upsert(ctx context.Context, userEmail, act string, stars int, comment string) (*models.Rating, error)
	ListByAct(ctx context.Context, act string) ([]models.Rating, error)
	Average(ctx context.Context, act string) (models.RatingAverage, error)
	Delete(ctx context.Context, userEmail, act string) error
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type Service struct {
	Store  RatingStore
	Logger *logger.Logger
}

func NewService(store RatingStore, log *logger.Logger) *Service {
	return &Service{Store: store, Logger: log}
}

// Rate records the caller's star rating for an act, replacing any
// earlier rating by the same account.
func (s *Service) Rate(ctx context.Context, userEmail, act string, stars int, comment string) (*models.Rating, error) {
	if act == "" {
		return nil, &ValidationError{Field: "act", Message: "must not be empty"}
	}
	if stars < 1 || stars > 5 {
		return nil, &ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}

	rating, err := s.Store.Upsert(ctx, userEmail, act, stars, comment)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.LogDatabase("UPSERT", "ratings", fmt.Sprintf("%s rated %q %d stars", userEmail, act, stars))
	}
	return rating, nil
}

// ActRatings returns every rating for an act plus its aggregate.
func (s *Service) ActRatings(ctx context.Context, act string) ([]models.Rating, models.RatingAverage, error) {
	if act == "" {
		return nil, models.RatingAverage{}, &ValidationError{Field: "act", Message: "must not be empty"}
	}

	list, err := s.Store.ListByAct(ctx, act)
	if err != nil {
		return nil, models.RatingAverage{}, err
	}
	avg, err := s.Store.Average(ctx, act)
	if err != nil {
		return nil, models.RatingAverage{}, err
	}
	return list, avg, nil
}

// Remove deletes the caller's own rating for an act.
func (s *Service) Remove(ctx context.Context, userEmail, act string) error {
	if act == "" {
		return &ValidationError{Field: "act", Message: "must not be empty"}
	}
	return s.Store.Delete(ctx, userEmail, act)
}
