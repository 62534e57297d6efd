package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vaulttesting "github.com/malbeclabs/feevault/utils/pkg/testing"
	"github.com/malbeclabs/feevault/vault/pkg/events"
)

type mockWriter struct {
	WriteMessagesFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed            bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.WriteMessagesFunc(ctx, msgs...)
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

type mockSink struct {
	name      string
	published [][]events.Event
	err       error
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Publish(_ context.Context, evs []events.Event) error {
	m.published = append(m.published, evs)
	return m.err
}

func (m *mockSink) Close() error { return m.err }

func deposit() events.Event {
	ev := events.New("usdc", events.KindDeposit, 1713139200)
	ev.Actor = "alice"
	ev.Amount = sdkmath.NewInt(100_0000000)
	ev.Shares = sdkmath.NewInt(90_9090909)
	ev.BTokens = sdkmath.NewInt(90_9090909)
	return ev
}

func TestFeeVault_Events_New(t *testing.T) {
	t.Parallel()

	a := events.New("usdc", events.KindFeeUpdate, 10)
	b := events.New("usdc", events.KindFeeUpdate, 10)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Amount.IsZero())
	assert.True(t, a.Shares.IsZero())
	assert.True(t, a.BTokens.IsZero())

	data, err := json.Marshal(deposit())
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "vault_deposit", decoded["kind"])
	assert.Equal(t, "1000000000", decoded["amount"])
	assert.NotContains(t, decoded, "token")
}

func TestFeeVault_Events_KafkaSink(t *testing.T) {
	t.Parallel()

	t.Run("config validation", func(t *testing.T) {
		t.Parallel()
		_, err := events.NewKafkaSink(events.KafkaConfig{Topic: "vault-events"})
		require.EqualError(t, err, "kafka brokers are required")
		_, err = events.NewKafkaSink(events.KafkaConfig{Brokers: []string{"localhost:9092"}})
		require.EqualError(t, err, "kafka topic is required")
	})

	t.Run("publishes keyed JSON messages", func(t *testing.T) {
		t.Parallel()
		var got []kafka.Message
		w := &mockWriter{WriteMessagesFunc: func(_ context.Context, msgs ...kafka.Message) error {
			got = append(got, msgs...)
			return nil
		}}
		sink, err := events.NewKafkaSink(events.KafkaConfig{Writer: w})
		require.NoError(t, err)

		ev := deposit()
		require.NoError(t, sink.Publish(context.Background(), []events.Event{ev}))
		require.Len(t, got, 1)
		assert.Equal(t, "usdc", string(got[0].Key))
		assert.Equal(t, "vault_deposit", string(got[0].Headers[0].Value))

		var decoded events.Event
		require.NoError(t, json.Unmarshal(got[0].Value, &decoded))
		assert.Equal(t, ev.ID, decoded.ID)
		assert.True(t, ev.Amount.Equal(decoded.Amount))

		require.NoError(t, sink.Close())
		assert.True(t, w.closed)
	})

	t.Run("write failure", func(t *testing.T) {
		t.Parallel()
		w := &mockWriter{WriteMessagesFunc: func(context.Context, ...kafka.Message) error {
			return errors.New("leader not available")
		}}
		sink, err := events.NewKafkaSink(events.KafkaConfig{Writer: w})
		require.NoError(t, err)
		require.ErrorContains(t, sink.Publish(context.Background(), []events.Event{deposit()}), "leader not available")
	})
}

func TestFeeVault_Events_Publisher(t *testing.T) {
	t.Parallel()

	ok := &mockSink{name: "ok"}
	failing := &mockSink{name: "failing", err: errors.New("down")}
	p := events.NewPublisher(vaulttesting.NewLogger(), failing, ok, events.NewLogSink(vaulttesting.NewLogger()))

	p.Publish(context.Background(), deposit(), deposit())
	require.Len(t, failing.published, 1)
	require.Len(t, ok.published, 1)
	assert.Len(t, ok.published[0], 2)

	p.Publish(context.Background())
	assert.Len(t, ok.published, 1)

	require.ErrorContains(t, p.Close(), "down")

	var nilPublisher *events.Publisher
	nilPublisher.Publish(context.Background(), deposit())
	require.NoError(t, nilPublisher.Close())
}
