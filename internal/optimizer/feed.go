package optimizer

import (
	"context"

	"github.com/openradio/librarysearch/pkg/kafka"
	"github.com/openradio/librarysearch/pkg/logger"
)

// TermEvent is published for every distinct term an indexer flush touches
// and consumed by the optimizer service.
type TermEvent struct {
	Term string `json:"term"`
}

// TermPublisher is the slice of the Kafka producer the notifier needs.
// *kafka.Producer satisfies it.
type TermPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// KafkaNotifier adapts an event publisher to the indexer's TermNotifier
// interface, turning flushed terms into the compaction feed.
type KafkaNotifier struct {
	publisher TermPublisher
}

func NewKafkaNotifier(publisher TermPublisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher}
}

// NotifyTerms publishes one event per touched term, keyed by the term so
// repeated touches of a term land on the same partition.
func (n *KafkaNotifier) NotifyTerms(ctx context.Context, terms []string) error {
	events := make([]kafka.Event, 0, len(terms))
	for _, term := range terms {
		events = append(events, kafka.Event{
			Key:   term,
			Value: TermEvent{Term: term},
		})
	}
	return n.publisher.PublishBatch(ctx, events)
}

// Handler returns a Kafka MessageHandler that compacts the term named by
// each event. Malformed events are logged and dropped rather than
// redelivered forever.
func (o *Optimizer) Handler() kafka.MessageHandler {
	log := logger.WithComponent("optimizer-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[TermEvent](value)
		if err != nil {
			log.Error("failed to decode term event",
				"key", string(key),
				"error", err,
			)
			return nil
		}
		if event.Term == "" {
			return nil
		}
		removed, err := o.OptimizeTerm(ctx, event.Term)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Info("term compacted",
				"term", event.Term,
				"records_removed", removed,
			)
		}
		return nil
	}
}
