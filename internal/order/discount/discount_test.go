package discount

import (
	"testing"
	"time"

	"ms-pos/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func activePromo(kind models.DiscountType, value float64) *models.PromoCode {
	return &models.PromoCode{
		Code:          "SAVE",
		DiscountType:  kind,
		DiscountValue: value,
		IsActive:      true,
	}
}

func TestAmount_Percentage(t *testing.T) {
	assert.Equal(t, 100.0, Amount(*activePromo(models.DiscountPercentage, 10), 1000))
	assert.Equal(t, 12.35, Amount(*activePromo(models.DiscountPercentage, 10), 123.46))
}

func TestAmount_FixedCappedAtSubtotal(t *testing.T) {
	assert.Equal(t, 100.0, Amount(*activePromo(models.DiscountFixed, 150), 100))
	assert.Equal(t, 50.0, Amount(*activePromo(models.DiscountFixed, 50), 100))
}

func TestValidate_OrderOfChecks(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		promo    *models.PromoCode
		subtotal float64
		want     Reason
	}{
		{"missing", nil, 100, ReasonNotFound},
		{"inactive wins over expired", &models.PromoCode{
			IsActive: false, ValidTo: timePtr(now.Add(-time.Hour)),
		}, 100, ReasonInactive},
		{"not yet valid", &models.PromoCode{
			IsActive: true, ValidFrom: timePtr(now.Add(time.Hour)),
		}, 100, ReasonNotYetValid},
		{"expired", &models.PromoCode{
			IsActive: true, ValidTo: timePtr(now.Add(-time.Minute)),
		}, 100, ReasonExpired},
		{"exhausted wins over minimum", &models.PromoCode{
			IsActive: true, UsageLimit: intPtr(3), UsageCount: 3, MinOrderAmount: 500,
		}, 100, ReasonUsageExceeded},
		{"minimum not met", &models.PromoCode{
			IsActive: true, MinOrderAmount: 200,
		}, 199.99, ReasonMinimumNotMet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rej := Validate(tt.promo, tt.subtotal, now)
			require.NotNil(t, rej)
			assert.Equal(t, tt.want, rej.Reason)
			assert.NotEmpty(t, rej.Message)
		})
	}
}

func TestValidate_AcceptsWithinWindow(t *testing.T) {
	now := time.Now().UTC()
	p := &models.PromoCode{
		IsActive:       true,
		ValidFrom:      timePtr(now.Add(-time.Hour)),
		ValidTo:        timePtr(now.Add(time.Hour)),
		UsageLimit:     intPtr(2),
		UsageCount:     1,
		MinOrderAmount: 100,
	}
	assert.Nil(t, Validate(p, 100, now))
}

func TestValidate_MinimumMessageMentionsAmount(t *testing.T) {
	rej := Validate(&models.PromoCode{IsActive: true, MinOrderAmount: 250}, 10, time.Now())
	require.NotNil(t, rej)
	assert.Contains(t, rej.Message, "250")
}

func TestPreview(t *testing.T) {
	now := time.Now()

	p := activePromo(models.DiscountPercentage, 10)
	preview := Preview("save", p, 1000, now)
	assert.True(t, preview.Valid)
	assert.Equal(t, "SAVE", preview.Code)
	assert.Equal(t, 100.0, preview.DiscountAmount)
	assert.Equal(t, 900.0, preview.NewTotal)

	missing := Preview("nope", nil, 1000, now)
	assert.False(t, missing.Valid)
	assert.Equal(t, "NOPE", missing.Code)
	assert.Equal(t, string(ReasonNotFound), missing.Reason)
	assert.Equal(t, 1000.0, missing.NewTotal)
}
