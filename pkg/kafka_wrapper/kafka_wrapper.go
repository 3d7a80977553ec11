// Package kafkawrapper carries the account update feed: the bridge
// publishes every applied update as JSON keyed by account id, and the
// journal worker consumes the topic. Keying by account id keeps one
// account's updates ordered within a partition.
package kafkawrapper

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
	Headers   map[string]string
}

type ProducerConfig struct {
	Brokers      []string `yaml:"brokers"`
	BatchSize    int      `yaml:"batch_size"`
	BatchBytes   int64    `yaml:"batch_bytes"`
	BatchTimeout time.Duration
}

type Producer struct {
	w *kafka.Writer
}

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchBytes == 0 {
		cfg.BatchBytes = 1 << 20
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	return &Producer{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireNone,
		Async:                  true,
	}}
}

func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	if p == nil || p.w == nil {
		return errors.New("producer not initialized")
	}
	var kh []kafka.Header
	for k, v := range headers {
		kh = append(kh, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: kh,
		Time:    time.Now(),
	})
}

func (p *Producer) PublishJSON(ctx context.Context, topic, key string, v any, headers map[string]string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, []byte(key), b, headers)
}

func (p *Producer) Close(ctx context.Context) error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

type ConsumerConfig struct {
	Brokers     []string `yaml:"brokers"`
	GroupID     string   `yaml:"group_id"`
	Topic       string   `yaml:"topic"`
	DLQTopic    string   `yaml:"dlq_topic"`
	WorkerCount int      `yaml:"worker_count"`
	MaxRetries  int      `yaml:"max_retries"`
	BackoffMin  time.Duration
	BackoffMax  time.Duration
}

type ConsumerGroup struct {
	r   *kafka.Reader
	cfg ConsumerConfig
	dlq *Producer
}

func NewConsumerGroup(cfg ConsumerConfig) *ConsumerGroup {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.BackoffMin == 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})
	var dlq *Producer
	if cfg.DLQTopic != "" {
		dlq = NewProducer(ProducerConfig{Brokers: cfg.Brokers})
	}
	return &ConsumerGroup{r: rd, cfg: cfg, dlq: dlq}
}

func (cg *ConsumerGroup) Close() error {
	if cg == nil {
		return nil
	}
	if cg.dlq != nil {
		_ = cg.dlq.Close(context.Background())
	}
	if cg.r != nil {
		return cg.r.Close()
	}
	return nil
}

// Run fetches messages and feeds them to a worker pool. A message whose
// handler keeps failing past MaxRetries goes to the DLQ topic (when
// configured) and is committed, so one poison message cannot wedge the
// group.
func (cg *ConsumerGroup) Run(ctx context.Context, handler func(context.Context, Message) error) error {
	if cg == nil || cg.r == nil {
		return errors.New("consumer not initialized")
	}

	msgs := make(chan kafka.Message, cg.cfg.WorkerCount)
	done := make(chan struct{}, cg.cfg.WorkerCount)

	for i := 0; i < cg.cfg.WorkerCount; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for m := range msgs {
				cg.handleWithRetry(ctx, m, handler)
			}
		}()
	}

	var fetchErr error
	for ctx.Err() == nil {
		m, err := cg.r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				fetchErr = err
				zap.S().Warnw("kafka fetch failed", "error", err)
			}
			break
		}
		select {
		case msgs <- m:
		case <-ctx.Done():
		}
	}
	close(msgs)
	for i := 0; i < cg.cfg.WorkerCount; i++ {
		<-done
	}
	if fetchErr != nil {
		return fetchErr
	}
	return ctx.Err()
}

func (cg *ConsumerGroup) handleWithRetry(ctx context.Context, m kafka.Message, handler func(context.Context, Message) error) {
	wrapped := wrapMessage(m)
	var attempt int
	for {
		err := handler(ctx, wrapped)
		if err == nil {
			_ = cg.r.CommitMessages(ctx, m)
			return
		}
		attempt++
		if attempt > cg.cfg.MaxRetries {
			if cg.dlq != nil {
				_ = cg.dlq.Publish(ctx, cg.cfg.DLQTopic, m.Key, m.Value, wrapped.Headers)
			}
			zap.S().Warnw("message dropped after retries",
				"topic", m.Topic, "offset", m.Offset, "error", err)
			_ = cg.r.CommitMessages(ctx, m)
			return
		}
		select {
		case <-time.After(backoffDuration(cg.cfg.BackoffMin, cg.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return
		}
	}
}

func wrapMessage(m kafka.Message) Message {
	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   headers,
	}
}

func backoffDuration(min, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(min) * math.Pow(2, float64(attempt-1)))
	if d > max {
		d = max
	}
	if d > 0 {
		d = time.Duration(rand.Int63n(int64(d)))
	}
	return d
}

// HashKey gives a stable 8-byte partition key for an account id.
func HashKey(s string) []byte {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum64()
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(sum >> (56 - 8*i))
	}
	return b
}
