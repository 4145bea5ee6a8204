// Package events publishes payout status changes for downstream consumers
// such as notifications and the admin approval UI.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

type PayoutStatusChanged struct {
	Type          string    `json:"type"`
	PayoutID      uuid.UUID `json:"payout_id"`
	ArtistID      uuid.UUID `json:"artist_id"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"`
	Fee           int64     `json:"fee"`
	NetAmount     int64     `json:"net_amount"`
	Currency      string    `json:"currency"`
	Method        string    `json:"payment_method"`
	TransactionID *string   `json:"transaction_id,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewPayoutStatusChanged(p *domain.Payout, at time.Time) PayoutStatusChanged {
	return PayoutStatusChanged{
		Type:          "payout." + string(p.Status),
		PayoutID:      p.ID,
		ArtistID:      p.ArtistID,
		Status:        string(p.Status),
		Amount:        p.Amount,
		Fee:           p.Fee,
		NetAmount:     p.NetAmount,
		Currency:      p.Currency,
		Method:        p.PaymentMethod,
		TransactionID: p.TransactionID,
		FailureReason: p.FailureReason,
		OccurredAt:    at,
	}
}

type Publisher interface {
	PublishPayout(ctx context.Context, evt PayoutStatusChanged) error
	Close() error
}

// KafkaPublisher keys messages by artist so one artist's payout history stays
// ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("NewKafkaPublisher: at least one broker required")
	}
	if topic == "" {
		return nil, fmt.Errorf("NewKafkaPublisher: topic required")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

func (p *KafkaPublisher) PublishPayout(ctx context.Context, evt PayoutStatusChanged) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("PublishPayout: marshal: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(evt.ArtistID.String()),
		Value: body,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("PublishPayout: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher stands in when no brokers are configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishPayout(_ context.Context, evt PayoutStatusChanged) error {
	p.logger.Info("payout status changed",
		"event_type", evt.Type,
		"payout_id", evt.PayoutID,
		"artist_id", evt.ArtistID,
		"amount", evt.Amount,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
