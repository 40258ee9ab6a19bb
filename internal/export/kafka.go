package export

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"jobsweep-engine/internal/aggregate"
	"jobsweep-engine/internal/domain"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message types carried in the "type" header.
const (
	MessageRecord  = "record"
	MessageSummary = "summary"
)

// KafkaSink publishes one message per record keyed by dedup key, then a
// summary message keyed by run id.
type KafkaSink struct {
	writer MessageWriter
	now    func() time.Time
}

func NewKafkaSink(broker, topic string) *KafkaSink {
	return NewKafkaSinkWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: false,
	})
}

// NewKafkaSinkWithWriter builds a sink on a custom writer (tests).
func NewKafkaSinkWithWriter(w MessageWriter) *KafkaSink {
	return &KafkaSink{writer: w, now: time.Now}
}

func (k *KafkaSink) Name() string { return "kafka" }

type recordEnvelope struct {
	RunID  string           `json:"run_id"`
	Record domain.JobRecord `json:"record"`
}

func (k *KafkaSink) Write(ctx context.Context, runID string, recs []domain.JobRecord) error {
	if len(recs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(recs))
	for _, r := range recs {
		payload, err := json.Marshal(recordEnvelope{RunID: runID, Record: r})
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(r.Key),
			Value:   payload,
			Headers: []kafka.Header{{Key: "type", Value: []byte(MessageRecord)}},
			Time:    k.now().UTC(),
		})
	}
	return k.writer.WriteMessages(ctx, msgs...)
}

func (k *KafkaSink) Finish(ctx context.Context, sum aggregate.Summary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte("run:" + sum.RunID),
		Value:   payload,
		Headers: []kafka.Header{{Key: "type", Value: []byte(MessageSummary)}},
		Time:    k.now().UTC(),
	})
}

func (k *KafkaSink) Close() error { return k.writer.Close() }
