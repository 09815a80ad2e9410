package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"concord/internal/eventlog"
)

// KafkaSink writes events to a Kafka topic, keyed by domain so each domain's
// events stay ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to brokers and makes sure topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka create topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("kafka create topic %s: %w", r.Topic, r.Err)
		}
	}

	return &KafkaSink{client: client, topic: topic}, nil
}

// Send produces the batch synchronously and returns the first failure.
func (k *KafkaSink) Send(ctx context.Context, events []eventlog.Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", e.Seq, err)
		}
		records = append(records, &kgo.Record{
			Topic: k.topic,
			Key:   []byte(e.Domain),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.Type)},
				{Key: "seq", Value: []byte(fmt.Sprintf("%d", e.Seq))},
			},
		})
	}
	return k.client.ProduceSync(ctx, records...).FirstErr()
}

// Close flushes and closes the client.
func (k *KafkaSink) Close() {
	k.client.Close()
}
