package bus

import (
	"context"
	"fmt"

	"ms-pos/internal/logger"
)

// Tee publishes to a primary bus and copies every message to mirrors. Only the
// primary result is reported; mirror failures are logged.
type Tee struct {
	Primary Publisher
	Mirrors []Publisher
	Logger  *logger.Logger
}

func NewTee(primary Publisher, log *logger.Logger, mirrors ...Publisher) *Tee {
	return &Tee{Primary: primary, Mirrors: mirrors, Logger: log}
}

func (t *Tee) Publish(ctx context.Context, topic string, payload []byte) error {
	err := t.Primary.Publish(ctx, topic, payload)
	for _, m := range t.Mirrors {
		if mErr := m.Publish(ctx, topic, payload); mErr != nil {
			t.Logger.Warn("BUS", fmt.Sprintf("Mirror publish to %s failed: %v", topic, mErr))
		}
	}
	return err
}
