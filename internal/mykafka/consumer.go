package mykafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ProductListener consumes product_events so every instance can refresh its catalog after an
// admin edit made elsewhere.
type ProductListener struct {
	reader messageReader
	log    *slog.Logger
}

// InstanceGroupID returns a consumer group of its own for this process. A shared group would split
// the partitions so each event reached only one instance.
func InstanceGroupID(prefix string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return prefix + "-" + host + "-" + uuid.NewString()[:8]
}

// NewProductListener reads product_events in groupID starting from the newest offset; past edits
// are already in the catalog the instance loaded at startup.
func NewProductListener(brokers []string, groupID string, log *slog.Logger) *ProductListener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       TopicProductEvents,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MaxBytes:    10e6,
	})
	return &ProductListener{reader: reader, log: log}
}

// Run calls handle for every decodable event until ctx is done.
func (l *ProductListener) Run(ctx context.Context, handle func(context.Context, ProductEvent)) {
	for {
		m, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			l.log.Warn("read product event failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var ev ProductEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			l.log.Warn("skipping malformed product event", "offset", m.Offset, "error", err)
			continue
		}
		handle(ctx, ev)
	}
}

func (l *ProductListener) Close() error {
	return l.reader.Close()
}
