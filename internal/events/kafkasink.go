//go:build enterprise
// +build enterprise

package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaMirror durably republishes every Sink event onto a Kafka topic,
// for deployments that want a replayable event log in addition to the
// in-process subscriber fan-out. Mirroring is best-effort: a publish
// failure is logged and dropped, never fed back into the Sink's own
// non-blocking guarantee.
type KafkaMirror struct {
	writer *kafka.Writer
	sink   *Sink
	cancel func()
}

// StartKafkaMirror subscribes to sink and republishes every event as a
// JSON-encoded Kafka message keyed by AgentID until ctx is canceled.
func StartKafkaMirror(ctx context.Context, sink *Sink, brokers []string, topic string) *KafkaMirror {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	}

	ch, unsubscribe := sink.Subscribe()
	mirrorCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer unsubscribe()
		for {
			select {
			case <-mirrorCtx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				payload, err := json.Marshal(e)
				if err != nil {
					log.Printf("events: kafka mirror marshal error: %v", err)
					continue
				}
				msg := kafka.Message{Key: []byte(e.AgentID), Value: payload}
				if err := writer.WriteMessages(mirrorCtx, msg); err != nil {
					log.Printf("events: kafka mirror publish error: %v", err)
				}
			}
		}
	}()

	return &KafkaMirror{writer: writer, sink: sink, cancel: cancel}
}

// Close stops the mirror goroutine and flushes the underlying writer.
func (m *KafkaMirror) Close() error {
	m.cancel()
	return m.writer.Close()
}
