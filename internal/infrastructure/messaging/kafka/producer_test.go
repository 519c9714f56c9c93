package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/embedscope/internal/application/embedding"
	"github.com/turtacn/embedscope/pkg/errors"
	"github.com/turtacn/embedscope/pkg/types/common"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   int
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func testProducerConfig() ProducerConfig {
	return ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "embedscope.lifecycle"}
}

func resolvedEvent() embedding.LifecycleEvent {
	return embedding.LifecycleEvent{
		BaseEvent:      common.NewBaseEvent(embedding.EventFetchResolved, "emb-1"),
		Generation:     3,
		Outcome:        "resolved",
		Points:         42,
		Clusters:       5,
		DurationMillis: 120,
	}
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(testProducerConfig()))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Topic: "t"}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, Topic: "t", MaxRetries: -1}))
}

func TestProducer_Publish(t *testing.T) {
	w := &mockWriter{}
	p := newProducer(w, testProducerConfig(), nil)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   "t",
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: map[string]string{"h": "1"},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)
	assert.Equal(t, "t", w.messages[0].Topic)
	assert.Equal(t, []byte("k"), w.messages[0].Key)
	assert.False(t, w.messages[0].Time.IsZero())
	assert.Equal(t, []kafka.Header{{Key: "h", Value: []byte("1")}}, w.messages[0].Headers)

	sent, failed, bytes := p.Stats()
	assert.Equal(t, int64(1), sent)
	assert.Zero(t, failed)
	assert.Equal(t, int64(1), bytes)
}

func TestProducer_Publish_Validation(t *testing.T) {
	p := newProducer(&mockWriter{}, testProducerConfig(), nil)
	ctx := context.Background()

	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Value: []byte("v")}), errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t"}), errors.ErrCodeValidation))

	big := make([]byte, 1024*1024+1)
	assert.True(t, errors.IsCode(p.Publish(ctx, &ProducerMessage{Topic: "t", Value: big}), errors.ErrCodeValidation))
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &mockWriter{err: assert.AnError}
	p := newProducer(w, testProducerConfig(), nil)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrPublishFailed)

	_, failed, _ := p.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestProducer_PublishEvent(t *testing.T) {
	w := &mockWriter{}
	p := newProducer(w, testProducerConfig(), nil)
	ev := resolvedEvent()

	require.NoError(t, p.PublishEvent(context.Background(), "emb-1", ev))
	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "embedscope.lifecycle", msg.Topic)
	assert.Equal(t, []byte("emb-1"), msg.Key)
	assert.True(t, msg.Time.Equal(ev.OccurredAt()))

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, ev.EventID(), env.EventID)
	assert.Equal(t, embedding.EventFetchResolved, env.EventType)
	assert.Equal(t, DefaultSource, env.Source)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Equal(t, "emb-1", env.AggregateID)

	decoded, err := env.LifecycleEvent()
	require.NoError(t, err)
	assert.Equal(t, 42, decoded.Points)
	assert.Equal(t, uint64(3), decoded.Generation)
}

func TestProducer_Close(t *testing.T) {
	w := &mockWriter{}
	p := newProducer(w, testProducerConfig(), nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	_, err := NewProducer(ProducerConfig{}, nil)
	assert.Error(t, err)
}
