package kafka

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Handler must return nil only when the message was fully applied and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

type ConsumerConfig struct {
	Brokers     []string
	Group       string
	Topic       string
	Workers     int
	MaxAttempts int
}

// Consumer reads one topic in a consumer group and commits a message only
// after its handler succeeded. Messages of a partition always go to the same
// worker, so commits never overtake an unfinished earlier offset.
type Consumer struct {
	r           messageReader
	topic       string
	workers     int
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	dlq         Publisher
	log         *logrus.Entry
}

// NewConsumer builds a group consumer. With a nil dlq a failing message is
// retried until it succeeds.
func NewConsumer(cfg ConsumerConfig, dlq Publisher, log *logrus.Entry) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.Group,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, cfg, dlq, log)
}

func newConsumer(r messageReader, cfg ConsumerConfig, dlq Publisher, log *logrus.Entry) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Consumer{
		r:           r,
		topic:       cfg.Topic,
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		backoff:     200 * time.Millisecond,
		maxBackoff:  10 * time.Second,
		dlq:         dlq,
		log:         log.WithField("topic", cfg.Topic),
	}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if err := c.process(ctx, m, h); err != nil && ctx.Err() == nil {
					c.entry(m).WithError(err).Error("message left uncommitted")
				}
			}
		}(jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch message")
		}
		select {
		case jobs[shard(m, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process applies h with retries. A message is committed after success or
// after it was copied to the dead-letter topic; on shutdown it is left
// uncommitted so the group redelivers it.
func (c *Consumer) process(ctx context.Context, m kafka.Message, h Handler) error {
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entry := c.entry(m).WithError(err).WithField("attempt", attempt)
		if c.dlq != nil && (IsPermanent(err) || attempt >= c.maxAttempts) {
			entry.Error("handler gave up, dead-lettering")
			if err := c.deadLetter(ctx, m, err); err != nil {
				return err
			}
			break
		}
		entry.Warn("handler failed, retrying")
		if !sleep(ctx, c.delay(attempt)) {
			return ctx.Err()
		}
	}
	return errors.Wrap(c.r.CommitMessages(ctx, m), "commit")
}

func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message, cause error) error {
	headers := append([]kafka.Header{}, m.Headers...)
	headers = append(headers,
		kafka.Header{Key: "x-dlq-error", Value: []byte(cause.Error())},
		kafka.Header{Key: "x-dlq-partition", Value: []byte(strconv.Itoa(m.Partition))},
		kafka.Header{Key: "x-dlq-offset", Value: []byte(strconv.FormatInt(m.Offset, 10))},
	)
	dl := kafka.Message{
		Topic:   DeadLetterTopic(m.Topic),
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
	}
	return errors.Wrap(c.dlq.Publish(ctx, dl), "dead-letter")
}

func (c *Consumer) delay(attempt int) time.Duration {
	d := c.backoff
	for i := 1; i < attempt && d < c.maxBackoff; i++ {
		d *= 2
	}
	if d > c.maxBackoff {
		d = c.maxBackoff
	}
	return d
}

func (c *Consumer) entry(m kafka.Message) *logrus.Entry {
	return c.log.WithFields(logrus.Fields{
		"partition": m.Partition,
		"offset":    m.Offset,
		"key":       string(m.Key),
	})
}

func DeadLetterTopic(topic string) string { return topic + ".dlq" }

func shard(m kafka.Message, workers int) int {
	h := xxhash.Sum64String(m.Topic + "/" + strconv.Itoa(m.Partition))
	return int(h % uint64(workers))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that no redelivery can fix, such as an
// undecodable payload. Such messages skip the retries.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
