package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter запоминает отправленные сообщения и возвращает заданную ошибку.
type fakeWriter struct {
	sent   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.sent = append(w.sent, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func testMessages() []Message {
	return []Message{
		{Topic: TopicPayments, Key: "payment-1", Value: []byte(`{"status":"approved"}`), Headers: map[string]string{HeaderEventType: "payment.approved"}},
		{Topic: TopicRefunds, Key: "payment-1", Value: []byte(`{"amount":100}`), Headers: map[string]string{HeaderEventType: "refund.created"}},
	}
}

func TestNewPublisher_NoBrokers(t *testing.T) {
	_, err := NewPublisher(Config{})
	assert.Error(t, err)
}

func TestPublisher_PublishBatch_Success(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w}

	results := p.PublishBatch(context.Background(), testMessages())

	require.Len(t, results, 2)
	assert.NoError(t, results[0])
	assert.NoError(t, results[1])

	require.Len(t, w.sent, 2)
	assert.Equal(t, TopicPayments, w.sent[0].Topic)
	assert.Equal(t, []byte("payment-1"), w.sent[0].Key)
	assert.Equal(t, "payment.approved", headerValue(w.sent[0], HeaderEventType))
	assert.Equal(t, "refund.created", headerValue(w.sent[1], HeaderEventType))
}

func TestPublisher_PublishBatch_PartialFailure(t *testing.T) {
	w := &fakeWriter{err: kafka.WriteErrors{nil, kafka.LeaderNotAvailable}}
	p := &Publisher{writer: w}

	results := p.PublishBatch(context.Background(), testMessages())

	require.Len(t, results, 2)
	assert.NoError(t, results[0])
	assert.ErrorIs(t, results[1], kafka.LeaderNotAvailable)
}

func TestPublisher_PublishBatch_TotalFailure(t *testing.T) {
	brokerDown := errors.New("dial tcp: connection refused")
	p := &Publisher{writer: &fakeWriter{err: brokerDown}}

	results := p.PublishBatch(context.Background(), testMessages())

	require.Len(t, results, 2)
	for _, err := range results {
		assert.ErrorIs(t, err, brokerDown)
	}
}

func TestPublisher_PublishBatch_Empty(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w}

	assert.Empty(t, p.PublishBatch(context.Background(), nil))
	assert.Empty(t, w.sent)
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w}

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestDefaultTopics(t *testing.T) {
	topics := DefaultTopics()

	names := make([]string, 0, len(topics))
	for _, topic := range topics {
		names = append(names, topic.Name)
		assert.Positive(t, topic.Partitions)
	}
	assert.ElementsMatch(t, []string{TopicPayments, TopicRefunds}, names)
}
