package events

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/royalty-ledger/internal/domain"
)

func TestNewPayoutStatusChanged(t *testing.T) {
	reason := "account closed"
	p := &domain.Payout{
		ID:            uuid.New(),
		ArtistID:      uuid.New(),
		Amount:        3000,
		Fee:           87,
		NetAmount:     2913,
		Currency:      "USD",
		Status:        domain.PayoutStatusFailed,
		PaymentMethod: "paypal",
		FailureReason: &reason,
	}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	evt := NewPayoutStatusChanged(p, at)

	assert.Equal(t, "payout.failed", evt.Type)
	assert.Equal(t, p.ID, evt.PayoutID)
	assert.Equal(t, int64(2913), evt.NetAmount)
	assert.Equal(t, &reason, evt.FailureReason)
	assert.Equal(t, at, evt.OccurredAt)
}

func TestNewKafkaPublisher_Validates(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "royalty.payouts")
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "royalty.payouts")
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := p.PublishPayout(context.Background(), PayoutStatusChanged{Type: "payout.pending", PayoutID: uuid.New()})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"event_type":"payout.pending"`)
}
