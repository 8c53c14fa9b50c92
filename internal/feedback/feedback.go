// Package feedback stores guest reviews left after an order.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/order"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Store interface {
	InsertFeedback(ctx context.Context, f *models.Feedback) error
	ListFeedback(ctx context.Context, limit int) ([]models.Feedback, error)
}

type Service struct {
	Store  Store
	Logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{Store: store, Logger: log}
}

func (s *Service) Create(ctx context.Context, req models.FeedbackRequest) (*models.Feedback, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, &order.ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}

	f := &models.Feedback{
		ID:           uuid.NewString(),
		Rating:       req.Rating,
		Comment:      strings.TrimSpace(req.Comment),
		OrderNumber:  strings.TrimSpace(req.OrderNumber),
		CustomerName: strings.TrimSpace(req.CustomerName),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.Store.InsertFeedback(ctx, f); err != nil {
		return nil, fmt.Errorf("%w: insert feedback: %v", order.ErrStoreUnavailable, err)
	}
	s.Logger.Info("FEEDBACK", fmt.Sprintf("Feedback %d/5 for %q", f.Rating, f.OrderNumber))
	return f, nil
}

// List returns the newest feedback first.
func (s *Service) List(ctx context.Context, limit int) ([]models.Feedback, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	out, err := s.Store.ListFeedback(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list feedback: %v", order.ErrStoreUnavailable, err)
	}
	return out, nil
}

// BunStore persists feedback with bun.
type BunStore struct {
	DB bun.IDB
}

func (b *BunStore) InsertFeedback(ctx context.Context, f *models.Feedback) error {
	_, err := b.DB.NewInsert().Model(f).Exec(ctx)
	return err
}

func (b *BunStore) ListFeedback(ctx context.Context, limit int) ([]models.Feedback, error) {
	out := []models.Feedback{}
	err := b.DB.NewSelect().
		Model(&out).
		OrderExpr("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}
