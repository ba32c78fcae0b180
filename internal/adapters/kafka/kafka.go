package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cra-notify/internal/config"
	"cra-notify/internal/models"

	"github.com/IBM/sarama"
)

const EventNotificationCreated = "notification.created"

func InitKafkaProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy  // Enable compression
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner // Same receiver, same partition
	saramaConfig.Version = sarama.V2_0_0_0
	saramaConfig.ClientID = cfg.ClientID
	saramaConfig.Producer.MaxMessageBytes = 1000000

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return producer, nil
}

// NotificationEvent is the record written for every persisted notification.
type NotificationEvent struct {
	Event            string                  `json:"event"`
	NotificationID   string                  `json:"notificationId"`
	ReceiverID       string                  `json:"receiverId"`
	SenderID         *string                 `json:"senderId,omitempty"`
	NotificationType models.NotificationType `json:"type"`
	EntityType       *string                 `json:"entityType,omitempty"`
	EntityID         *string                 `json:"entityId,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
}

type NotificationPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewNotificationPublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *NotificationPublisher {
	return &NotificationPublisher{producer: producer, topic: topic, logger: logger}
}

// PublishCreated keys the record by receiver so one user's events stay ordered.
func (p *NotificationPublisher) PublishCreated(_ context.Context, n *models.Notification) error {
	payload, err := json.Marshal(NotificationEvent{
		Event:            EventNotificationCreated,
		NotificationID:   n.ID,
		ReceiverID:       n.ReceiverID,
		SenderID:         n.SenderID,
		NotificationType: n.Type,
		EntityType:       n.EntityType,
		EntityID:         n.EntityID,
		CreatedAt:        n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(n.ReceiverID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", EventNotificationCreated, err)
	}

	p.logger.Debug("Notification event published", "notificationID", n.ID, "partition", partition, "offset", offset)
	return nil
}

func (p *NotificationPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishCreated(context.Context, *models.Notification) error { return nil }

func (NoopPublisher) Close() error { return nil }
