package order_test

import (
	"testing"

	"ms-pos/internal/models"
	"ms-pos/internal/order"

	"github.com/stretchr/testify/assert"
)

func TestPermissive_AllowsEveryPair(t *testing.T) {
	p := order.Permissive{}
	for _, from := range models.OrderStatuses {
		for _, to := range models.OrderStatuses {
			assert.NoError(t, p.Allow(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStrict(t *testing.T) {
	s := order.Strict{}

	allowed := [][2]models.OrderStatus{
		{models.StatusNew, models.StatusPreparing},
		{models.StatusNew, models.StatusReady},
		{models.StatusPreparing, models.StatusCompleted},
		{models.StatusReady, models.StatusCancelled},
		{models.StatusNew, models.StatusCancelled},
		{models.StatusReady, models.StatusReady},
		{models.StatusCompleted, models.StatusCompleted},
	}
	for _, pair := range allowed {
		assert.NoError(t, s.Allow(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	refused := [][2]models.OrderStatus{
		{models.StatusReady, models.StatusNew},
		{models.StatusPreparing, models.StatusNew},
		{models.StatusCompleted, models.StatusNew},
		{models.StatusCompleted, models.StatusCancelled},
		{models.StatusCancelled, models.StatusPreparing},
	}
	for _, pair := range refused {
		assert.ErrorIs(t, s.Allow(pair[0], pair[1]), order.ErrIllegalTransition, "%s -> %s", pair[0], pair[1])
	}
}

func TestPolicyFor(t *testing.T) {
	assert.IsType(t, order.Strict{}, order.PolicyFor(true))
	assert.IsType(t, order.Permissive{}, order.PolicyFor(false))
}
