package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskWatch/pkg/logger"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type recordingCommitter struct {
	mu      sync.Mutex
	offsets []int64
}

func (c *recordingCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		c.offsets = append(c.offsets, m.Offset)
	}
	return nil
}

type countingHandler struct {
	topic string
	fails int
	calls int
	panic bool
}

func (h *countingHandler) Topic() string { return h.topic }

func (h *countingHandler) Handle(_ context.Context, _ []byte) error {
	h.calls++
	if h.panic {
		panic("boom")
	}
	if h.calls <= h.fails {
		return errors.New("transient")
	}
	return nil
}

func TestProducer_PublishEncodesValues(t *testing.T) {
	w := &recordingWriter{}
	p := newProducer(w, "gzip")

	require.NoError(t, p.Publish(context.Background(), "t", []byte("BTC"), map[string]int{"a": 1}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "plain"))
	require.NoError(t, p.PublishBatch(context.Background(), "t", []Message{{Value: []byte("raw")}, {Value: 2}}))
	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))

	require.Len(t, w.msgs, 4)
	assert.Equal(t, `{"a":1}`, string(w.msgs[0].Value))
	assert.Equal(t, "BTC", string(w.msgs[0].Key))
	assert.Equal(t, "plain", string(w.msgs[1].Value))
	assert.Equal(t, "logs", w.msgs[1].Topic)
	assert.Equal(t, "raw", string(w.msgs[2].Value))
	assert.Equal(t, "2", string(w.msgs[3].Value))
}

func TestProducer_PublishError(t *testing.T) {
	p := newProducer(&recordingWriter{err: errors.New("down")}, "gzip")
	err := p.Publish(context.Background(), "t", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	require.Error(t, err)
}

func testConsumer(h MessageHandler, retries int) (*Consumer, *recordingCommitter) {
	c := newConsumer(&ConsumerConfig{
		WorkerCount: 1,
		BufferSize:  1,
		RetryMax:    retries,
		BackoffMin:  time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
		Logger:      logger.NewNop(),
	})
	c.RegisterHandler(h)
	cm := &recordingCommitter{}
	c.commits[h.Topic()] = cm
	return c, cm
}

func TestConsumer_ProcessRetriesThenCommits(t *testing.T) {
	h := &countingHandler{topic: "signals", fails: 2}
	c, cm := testConsumer(h, 3)

	c.process(&message{topic: "signals", km: kafka.Message{Offset: 7, Value: []byte("{}")}})

	assert.Equal(t, 3, h.calls)
	assert.Equal(t, []int64{7}, cm.offsets)
}

func TestConsumer_ProcessGivesUpWithoutDLQ(t *testing.T) {
	h := &countingHandler{topic: "signals", fails: 10}
	c, cm := testConsumer(h, 1)

	var errs int
	c.WithConsumerHook(HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ }})
	c.process(&message{topic: "signals", km: kafka.Message{Offset: 1}})

	assert.Equal(t, 2, h.calls)
	assert.Empty(t, cm.offsets, "failed message without DLQ is left uncommitted")
	assert.Equal(t, 2, errs)
}

func TestConsumer_ProcessDLQ(t *testing.T) {
	h := &countingHandler{topic: "signals", panic: true}
	c, cm := testConsumer(h, 0)
	dlq := &recordingWriter{}
	c.cfg.DLQTopic = "signals.dlq"
	c.dlq = dlq

	c.process(&message{topic: "signals", km: kafka.Message{Offset: 3, Key: []byte("ETH"), Value: []byte("bad")}})

	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "signals.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "bad", string(dlq.msgs[0].Value))
	assert.Equal(t, []int64{3}, cm.offsets)
}

func TestConsumer_KeyFilterSkips(t *testing.T) {
	h := &countingHandler{topic: "signals"}
	c, cm := testConsumer(h, 0)
	c.WithConsumerHook(NewHookChain(nil, KeyFilterHook(func(k string) bool { return k == "BTC" })))

	c.process(&message{topic: "signals", km: kafka.Message{Offset: 1, Key: []byte("DOGE")}})
	c.process(&message{topic: "signals", km: kafka.Message{Offset: 2, Key: []byte("BTC")}})

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, []int64{1, 2}, cm.offsets)
}

func TestHookChain_PanicBecomesError(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 8; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 40*time.Millisecond, attempt)
		assert.LessOrEqual(t, d, 40*time.Millisecond)
		assert.Greater(t, d, time.Duration(0))
	}
}
