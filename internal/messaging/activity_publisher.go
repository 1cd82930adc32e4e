package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iatidata/sector-harvester/internal/model"
	"github.com/segmentio/kafka-go"
)

// ActivityEvent is the message value published for every stored activity.
type ActivityEvent struct {
	RunID          string          `json:"run_id"`
	IATIIdentifier string          `json:"iati_identifier"`
	HarvestedAt    time.Time       `json:"harvested_at"`
	Activity       json.RawMessage `json:"activity"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ActivityPublisher emits included activities to a Kafka topic, keyed by
// identifier so that compacted topics keep the latest copy.
type ActivityPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewActivityPublisher creates a publisher writing synchronously to topic.
func NewActivityPublisher(brokers []string, topic string) *ActivityPublisher {
	return newActivityPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		Async:                  false,
	})
}

func newActivityPublisher(w messageWriter) *ActivityPublisher {
	return &ActivityPublisher{writer: w, now: time.Now}
}

// Save publishes one activity event.
func (p *ActivityPublisher) Save(ctx context.Context, runID, identifier string, a *model.Activity) error {
	identifier = strings.TrimSpace(identifier)
	value, err := json.Marshal(ActivityEvent{
		RunID:          runID,
		IATIIdentifier: identifier,
		HarvestedAt:    p.now().UTC(),
		Activity:       a.Raw,
	})
	if err != nil {
		return fmt.Errorf("marshal activity event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(identifier),
		Value: value,
	}); err != nil {
		return fmt.Errorf("publish activity %s: %w", identifier, err)
	}
	return nil
}

// Close flushes and releases the underlying writer.
func (p *ActivityPublisher) Close() error {
	return p.writer.Close()
}
