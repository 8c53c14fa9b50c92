// Package settings owns the singleton runtime configuration edited from the admin
// panel.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ms-pos/internal/logger"
	"ms-pos/internal/models"

	"github.com/uptrace/bun"
)

const recordID = "global"

var ErrUnknownOrderType = errors.New("unknown order type")

// Store hands out immutable snapshots and serializes updates. Readers never block.
type Store struct {
	DB     bun.IDB
	Logger *logger.Logger

	current atomic.Pointer[models.Settings]
	mu      sync.Mutex
}

func NewStore(db bun.IDB, log *logger.Logger) *Store {
	s := &Store{DB: db, Logger: log}
	defaults := models.DefaultSettings()
	s.current.Store(&defaults)
	return s
}

// Load reads the persisted record, falling back to defaults when none exists yet.
func (s *Store) Load(ctx context.Context) error {
	var rec models.SettingsRecord
	err := s.DB.NewSelect().Model(&rec).Where("id = ?", recordID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		s.Logger.Info("SETTINGS", "No stored settings, using defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	loaded := merge(rec.Data)
	s.current.Store(&loaded)
	s.Logger.Info("SETTINGS", fmt.Sprintf("Loaded settings (delivery enabled=%t, %d order types)", loaded.Delivery.Enabled, len(loaded.OrderTypes)))
	return nil
}

// Snapshot returns the current settings. Callers must not mutate the result.
func (s *Store) Snapshot() *models.Settings {
	return s.current.Load()
}

func (s *Store) UpdateDelivery(ctx context.Context, d models.DeliverySettings) (*models.Settings, error) {
	if d.MinOrderAmount < 0 || d.MinOrderAmountOutOfCity < 0 {
		return nil, &ValidationError{Field: "min_order_amount", Message: "must not be negative"}
	}
	if strings.TrimSpace(d.MinOrderMessage) == "" {
		d.MinOrderMessage = models.DefaultMinOrderMessage
	}
	return s.update(ctx, "delivery", func(next *models.Settings) error {
		next.Delivery = d
		return nil
	})
}

func (s *Store) UpdateRestaurant(ctx context.Context, r models.RestaurantSettings) (*models.Settings, error) {
	return s.update(ctx, "restaurant", func(next *models.Settings) error {
		next.Restaurant = r
		return nil
	})
}

// UpdateOrderTypes changes label and enabled flag of the listed types. Types not
// listed keep their current values.
func (s *Store) UpdateOrderTypes(ctx context.Context, changes []models.OrderTypeOption) (*models.Settings, error) {
	return s.update(ctx, "order_types", func(next *models.Settings) error {
		for _, ch := range changes {
			i := indexOf(next.OrderTypes, ch.ID)
			if i < 0 {
				return fmt.Errorf("%w: %q", ErrUnknownOrderType, ch.ID)
			}
			if label := strings.TrimSpace(ch.Label); label != "" {
				next.OrderTypes[i].Label = label
			}
			next.OrderTypes[i].Enabled = ch.Enabled
		}
		return nil
	})
}

// ReorderOrderTypes assigns sort positions following ids. Missing types keep their
// relative order after the listed ones.
func (s *Store) ReorderOrderTypes(ctx context.Context, ids []models.OrderType) (*models.Settings, error) {
	return s.update(ctx, "order_types", func(next *models.Settings) error {
		seen := make(map[models.OrderType]bool, len(ids))
		for pos, id := range ids {
			i := indexOf(next.OrderTypes, id)
			if i < 0 {
				return fmt.Errorf("%w: %q", ErrUnknownOrderType, id)
			}
			if seen[id] {
				return &ValidationError{Field: "order", Message: fmt.Sprintf("%s listed twice", id)}
			}
			seen[id] = true
			next.OrderTypes[i].SortOrder = pos
		}
		pos := len(ids)
		for i := range next.OrderTypes {
			if !seen[next.OrderTypes[i].ID] {
				next.OrderTypes[i].SortOrder = pos
				pos++
			}
		}
		next.SortOrderTypes()
		return nil
	})
}

// update clones the current snapshot, applies fn, persists, and only then swaps the
// snapshot in. A failed write leaves readers on the previous settings.
func (s *Store) update(ctx context.Context, section string, fn func(next *models.Settings) error) (*models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Load().Clone()
	if err := fn(&next); err != nil {
		return nil, err
	}

	rec := &models.SettingsRecord{ID: recordID, Data: next, UpdatedAt: time.Now().UTC()}
	_, err := s.DB.NewInsert().
		Model(rec).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	s.current.Store(&next)
	s.Logger.Info("SETTINGS", fmt.Sprintf("Updated %s settings", section))
	return &next, nil
}

// merge fills order types missing from a stored record with their defaults so newly
// added types show up after an upgrade.
func merge(stored models.Settings) models.Settings {
	out := stored.Clone()
	if strings.TrimSpace(out.Delivery.MinOrderMessage) == "" {
		out.Delivery.MinOrderMessage = models.DefaultMinOrderMessage
	}
	for _, def := range models.DefaultSettings().OrderTypes {
		if indexOf(out.OrderTypes, def.ID) < 0 {
			def.SortOrder = len(out.OrderTypes)
			out.OrderTypes = append(out.OrderTypes, def)
		}
	}
	out.SortOrderTypes()
	return out
}

func indexOf(opts []models.OrderTypeOption, id models.OrderType) int {
	for i, o := range opts {
		if o.ID == id {
			return i
		}
	}
	return -1
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
