package notifications

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"xplore/internal/models"

	kgo "github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the notifier needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaNotifier writes notifications to a Kafka topic keyed by recipient,
// so one user's notifications stay ordered within a partition.
type KafkaNotifier struct {
	w messageWriter
}

// NewKafkaNotifier creates a writer for topic on brokers. With async set,
// WriteMessages returns immediately and errors are only visible to the writer.
func NewKafkaNotifier(brokers []string, topic string, async bool) *KafkaNotifier {
	return &KafkaNotifier{w: &kgo.Writer{
		Addr:                   kgo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kgo.Hash{},
		RequiredAcks:           kgo.RequireOne,
		Async:                  async,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (k *KafkaNotifier) Notify(ctx context.Context, note models.Notification) {
	payload, err := json.Marshal(note)
	if err == nil {
		err = k.w.WriteMessages(ctx, kgo.Message{
			Key:   []byte(strconv.FormatUint(uint64(note.RecipientID), 10)),
			Value: payload,
			Time:  note.CreatedAt,
		})
	}
	record(ctx, "kafka", note, err)
}

// Close flushes pending messages.
func (k *KafkaNotifier) Close() error {
	return k.w.Close()
}
