package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

func TestDeadLetterQueue_Send(t *testing.T) {
	sender := &recordingSender{}
	dlq := NewDeadLetterQueue(sender, "storefront.dlq")

	original := Message{Topic: "storefront.order.paid", Key: "order-1", Value: []byte(`{"order_id":"order-1"}`)}
	require.NoError(t, dlq.Send(context.Background(), original, "max attempts exceeded", errors.New("broker down")))

	require.Len(t, sender.sent, 1)
	got := sender.sent[0]
	assert.Equal(t, "storefront.dlq", got.Topic)
	assert.Equal(t, "order-1", got.Key)

	var body map[string]any
	require.NoError(t, json.Unmarshal(got.Value, &body))
	assert.Equal(t, "storefront.order.paid", body["original_topic"])
	assert.Equal(t, "broker down", body["failure_error"])
	assert.Equal(t, `{"order_id":"order-1"}`, body["original_value"])
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer(KafkaConfig{})
	assert.Error(t, err)
}
