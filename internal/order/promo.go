package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/order/discount"
)

// PromoService administers promo codes. Usage counts are only ever changed by
// order admission.
type PromoService struct {
	DB     PromoStore
	Logger *logger.Logger
	now    func() time.Time
}

func NewPromoService(db PromoStore, log *logger.Logger) *PromoService {
	return &PromoService{DB: db, Logger: log, now: func() time.Time { return time.Now().UTC() }}
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	promos, err := s.DB.ListPromoCodes(ctx)
	if err != nil {
		return nil, unavailable("list promo codes", err)
	}
	return promos, nil
}

func (s *PromoService) Create(ctx context.Context, req models.PromoCodeRequest) (*models.PromoCode, error) {
	p, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = s.now()
	p.IsActive = true
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	if err := s.DB.CreatePromoCode(ctx, p); err != nil {
		if errors.Is(err, ErrPromoExists) {
			return nil, err
		}
		return nil, unavailable("create promo code", err)
	}
	s.Logger.Info("PROMO", fmt.Sprintf("Created promo code %s (%s %v)", p.Code, p.DiscountType, p.DiscountValue))
	return p, nil
}

// Update replaces the rule fields of an existing code. The code itself and its
// usage count are kept.
func (s *PromoService) Update(ctx context.Context, code string, req models.PromoCodeRequest) (*models.PromoCode, error) {
	code = models.NormalizeCode(code)
	existing, err := s.DB.GetPromoCode(ctx, code)
	if errors.Is(err, ErrPromoNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("get promo code", err)
	}

	req.Code = code
	p, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	p.UsageCount = existing.UsageCount
	p.CreatedAt = existing.CreatedAt
	p.IsActive = existing.IsActive
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	if err := s.DB.UpdatePromoCode(ctx, p); err != nil {
		if errors.Is(err, ErrPromoNotFound) {
			return nil, err
		}
		return nil, unavailable("update promo code", err)
	}
	s.Logger.Info("PROMO", fmt.Sprintf("Updated promo code %s", p.Code))
	return p, nil
}

func (s *PromoService) Delete(ctx context.Context, code string) error {
	code = models.NormalizeCode(code)
	if err := s.DB.DeletePromoCode(ctx, code); err != nil {
		if errors.Is(err, ErrPromoNotFound) {
			return err
		}
		return unavailable("delete promo code", err)
	}
	s.Logger.Info("PROMO", fmt.Sprintf("Deleted promo code %s", code))
	return nil
}

// Validate previews a code against an order total without consuming a use.
func (s *PromoService) Validate(ctx context.Context, code string, orderTotal float64) (models.PromoPreview, error) {
	if models.NormalizeCode(code) == "" {
		return models.PromoPreview{}, invalid("code", "promo code is required")
	}
	if orderTotal < 0 {
		return models.PromoPreview{}, invalid("order_total", "must not be negative")
	}

	p, err := s.DB.GetPromoCode(ctx, models.NormalizeCode(code))
	if errors.Is(err, ErrPromoNotFound) {
		p, err = nil, nil
	}
	if err != nil {
		return models.PromoPreview{}, unavailable("get promo code", err)
	}
	return discount.Preview(code, p, orderTotal, s.now()), nil
}

func (s *PromoService) fromRequest(req models.PromoCodeRequest) (*models.PromoCode, error) {
	code := models.NormalizeCode(req.Code)
	if code == "" {
		return nil, invalid("code", "promo code is required")
	}
	kind, err := models.ParseDiscountType(req.DiscountType)
	if err != nil {
		return nil, invalid("discount_type", "must be percentage or fixed")
	}
	if req.DiscountValue <= 0 {
		return nil, invalid("discount_value", "must be positive")
	}
	if kind == models.DiscountPercentage && req.DiscountValue > 100 {
		return nil, invalid("discount_value", "percentage cannot exceed 100")
	}
	if req.MinOrderAmount < 0 {
		return nil, invalid("min_order_amount", "must not be negative")
	}
	if req.UsageLimit != nil && *req.UsageLimit < 1 {
		return nil, invalid("usage_limit", "must be at least 1")
	}
	if req.ValidFrom != nil && req.ValidTo != nil && req.ValidTo.Before(*req.ValidFrom) {
		return nil, invalid("valid_to", "must not precede valid_from")
	}

	return &models.PromoCode{
		Code:           code,
		DiscountType:   kind,
		DiscountValue:  req.DiscountValue,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
		UsageLimit:     req.UsageLimit,
		MinOrderAmount: req.MinOrderAmount,
	}, nil
}
