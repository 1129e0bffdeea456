// Package nats carries interaction records from the query path to the
// telemetry worker. The query path only serializes and publishes; the
// worker owns persistence.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/infrastructure/resilience"
)

const workerGroup = "telemetry-workers"

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
	Logger         *slog.Logger
}

// publisher is the slice of *nats.Conn the publish path needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Queue wraps one NATS connection scoped to a single telemetry subject.
type Queue struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	exec    *resilience.Executor
	logger  *slog.Logger
}

func New(url, subject string, opts Options) (*Queue, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("drug-safety-rag"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{conn: conn, pub: conn, subject: subject, exec: opts.Executor, logger: logger}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Record publishes one interaction record as JSON. Implements the
// telemetry sink port; the caller treats failures as best effort.
func (q *Queue) Record(ctx context.Context, rec domain.InteractionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal interaction record: %w", err)
	}

	publish := func(context.Context) error {
		if err := q.pub.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if q.exec != nil {
		return q.exec.Do(ctx, publish)
	}
	return publish(ctx)
}

// Subscribe consumes interaction records in a queue group until ctx is
// cancelled, then drains. Records that fail to decode or persist are
// logged and dropped, never redelivered.
func (q *Queue) Subscribe(ctx context.Context, handler func(context.Context, domain.InteractionRecord) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		q.consume(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// consume decodes one message and hands it to the handler. A record that
// fails to decode or persist is dropped, never redelivered.
func (q *Queue) consume(ctx context.Context, data []byte, handler func(context.Context, domain.InteractionRecord) error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	var rec domain.InteractionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		q.logger.Error("telemetry_decode_failed", "error", err)
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, rec); err != nil {
		q.logger.Error("telemetry_handle_failed", "query", rec.Query, "error", err)
	}
}
