// Command notifications tails the staff notification topic and prints each
// message the way the messaging bot would send it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ms-pos/internal/config"
	"ms-pos/internal/kafka"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"

	kafkago "github.com/segmentio/kafka-go"
)

func main() {
	group := flag.String("group", "pos-notifications-tail", "consumer group id")
	flag.Parse()

	log := logger.New(os.Stdout, logger.INFO)

	cfg, _, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	brokers := cfg.Kafka.KafkaBrokers()
	topics, err := kafka.ListTopics(ctx, brokers)
	if err != nil {
		log.Fatal("KAFKA", fmt.Sprintf("Brokers %v unreachable: %v", brokers, err))
	}
	log.Info("KAFKA", fmt.Sprintf("Topics on cluster: %v", topics))

	consumer := kafka.NewConsumer(brokers, cfg.Kafka.NotificationTopic, *group, log)
	defer consumer.Close()

	err = consumer.Run(ctx, func(ctx context.Context, msg kafkago.Message) error {
		var n models.OrderNotification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		fmt.Printf("----- %s (%s) -----\n%s\n", n.OrderNumber, n.Kind, n.Text)
		return nil
	})
	if err != nil {
		log.Fatal("KAFKA", err.Error())
	}
}
