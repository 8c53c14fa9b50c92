package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPromos struct {
	mu     sync.Mutex
	promos map[string]models.PromoCode
	err    error
}

func newMemPromos() *memPromos {
	return &memPromos{promos: map[string]models.PromoCode{}}
}

func (m *memPromos) ListPromoCodes(ctx context.Context) ([]models.PromoCode, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PromoCode{}
	for _, p := range m.promos {
		out = append(out, p)
	}
	return out, nil
}

func (m *memPromos) GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[code]
	if !ok {
		return nil, order.ErrPromoNotFound
	}
	return &p, nil
}

func (m *memPromos) CreatePromoCode(ctx context.Context, p *models.PromoCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.promos[p.Code]; ok {
		return order.ErrPromoExists
	}
	m.promos[p.Code] = *p
	return nil
}

func (m *memPromos) UpdatePromoCode(ctx context.Context, p *models.PromoCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.promos[p.Code]; !ok {
		return order.ErrPromoNotFound
	}
	m.promos[p.Code] = *p
	return nil
}

func (m *memPromos) DeletePromoCode(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.promos[code]; !ok {
		return order.ErrPromoNotFound
	}
	delete(m.promos, code)
	return nil
}

func boolPtr(v bool) *bool { return &v }

func TestPromoService_Create(t *testing.T) {
	store := newMemPromos()
	svc := order.NewPromoService(store, logger.Discard())

	p, err := svc.Create(context.Background(), models.PromoCodeRequest{
		Code: " spring15 ", DiscountType: "percentage", DiscountValue: 15, MinOrderAmount: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "SPRING15", p.Code)
	assert.True(t, p.IsActive)
	assert.Zero(t, p.UsageCount)
	assert.False(t, p.CreatedAt.IsZero())

	_, err = svc.Create(context.Background(), models.PromoCodeRequest{
		Code: "SPRING15", DiscountType: "fixed", DiscountValue: 10,
	})
	assert.ErrorIs(t, err, order.ErrPromoExists)

	p, err = svc.Create(context.Background(), models.PromoCodeRequest{
		Code: "DRAFT", DiscountType: "fixed", DiscountValue: 10, IsActive: boolPtr(false),
	})
	require.NoError(t, err)
	assert.False(t, p.IsActive)
}

func TestPromoService_CreateValidation(t *testing.T) {
	svc := order.NewPromoService(newMemPromos(), logger.Discard())
	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	tests := []struct {
		name  string
		req   models.PromoCodeRequest
		field string
	}{
		{"missing code", models.PromoCodeRequest{DiscountType: "fixed", DiscountValue: 5}, "code"},
		{"bad type", models.PromoCodeRequest{Code: "X", DiscountType: "bogo", DiscountValue: 5}, "discount_type"},
		{"zero value", models.PromoCodeRequest{Code: "X", DiscountType: "fixed"}, "discount_value"},
		{"percentage over 100", models.PromoCodeRequest{Code: "X", DiscountType: "percentage", DiscountValue: 120}, "discount_value"},
		{"negative minimum", models.PromoCodeRequest{Code: "X", DiscountType: "fixed", DiscountValue: 5, MinOrderAmount: -1}, "min_order_amount"},
		{"zero usage limit", models.PromoCodeRequest{Code: "X", DiscountType: "fixed", DiscountValue: 5, UsageLimit: intPtr(0)}, "usage_limit"},
		{"inverted window", models.PromoCodeRequest{Code: "X", DiscountType: "fixed", DiscountValue: 5, ValidFrom: &from, ValidTo: &to}, "valid_to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			var verr *order.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestPromoService_UpdateKeepsUsage(t *testing.T) {
	store := newMemPromos()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.promos["SPRING"] = models.PromoCode{
		Code: "SPRING", DiscountType: models.DiscountFixed, DiscountValue: 10,
		UsageCount: 7, IsActive: false, CreatedAt: created,
	}
	svc := order.NewPromoService(store, logger.Discard())

	p, err := svc.Update(context.Background(), "spring", models.PromoCodeRequest{
		Code: "IGNORED", DiscountType: "percentage", DiscountValue: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, "SPRING", p.Code)
	assert.Equal(t, 7, p.UsageCount)
	assert.Equal(t, created, p.CreatedAt)
	assert.False(t, p.IsActive)
	assert.Equal(t, models.DiscountPercentage, store.promos["SPRING"].DiscountType)

	p, err = svc.Update(context.Background(), "SPRING", models.PromoCodeRequest{
		DiscountType: "percentage", DiscountValue: 20, IsActive: boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	_, err = svc.Update(context.Background(), "MISSING", models.PromoCodeRequest{DiscountType: "fixed", DiscountValue: 1})
	assert.ErrorIs(t, err, order.ErrPromoNotFound)
}

func TestPromoService_Delete(t *testing.T) {
	store := newMemPromos()
	store.promos["GONE"] = models.PromoCode{Code: "GONE"}
	svc := order.NewPromoService(store, logger.Discard())

	require.NoError(t, svc.Delete(context.Background(), "gone"))
	assert.ErrorIs(t, svc.Delete(context.Background(), "gone"), order.ErrPromoNotFound)
}

func TestPromoService_Validate(t *testing.T) {
	store := newMemPromos()
	store.promos["TEN"] = models.PromoCode{
		Code: "TEN", DiscountType: models.DiscountPercentage, DiscountValue: 10,
		IsActive: true, UsageLimit: intPtr(3), UsageCount: 1, MinOrderAmount: 100,
	}
	svc := order.NewPromoService(store, logger.Discard())

	preview, err := svc.Validate(context.Background(), "ten", 250)
	require.NoError(t, err)
	assert.True(t, preview.Valid)
	assert.Equal(t, 25.0, preview.DiscountAmount)
	assert.Equal(t, 225.0, preview.NewTotal)
	assert.Equal(t, 1, store.promos["TEN"].UsageCount, "preview must not consume a use")

	preview, err = svc.Validate(context.Background(), "TEN", 50)
	require.NoError(t, err)
	assert.False(t, preview.Valid)
	assert.Equal(t, "promo_minimum_not_met", preview.Reason)
	assert.Equal(t, 50.0, preview.NewTotal)

	preview, err = svc.Validate(context.Background(), "NOPE", 50)
	require.NoError(t, err)
	assert.False(t, preview.Valid)
	assert.Equal(t, "promo_not_found", preview.Reason)

	_, err = svc.Validate(context.Background(), " ", 50)
	var verr *order.ValidationError
	assert.ErrorAs(t, err, &verr)

	store.err = errors.New("db gone")
	_, err = svc.Validate(context.Background(), "TEN", 50)
	assert.ErrorIs(t, err, order.ErrStoreUnavailable)
}
