package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/circuit_breaker"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, ev kafka.EventActivity)
}

type activityLog struct {
	producer sarama.SyncProducer
	topic    string
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
	now      func() time.Time
}

// NewPublisher sends activity events to topic. Delivery is best effort:
// failures are logged and a tripped breaker drops events until the broker recovers.
func NewPublisher(producer sarama.SyncProducer, topic string, log *zap.Logger) *activityLog {
	const (
		recordLength     = 10
		timeout          = 30 * time.Second
		percentile       = 0.5
		recoveryRequests = 2
	)
	return &activityLog{
		producer: producer,
		topic:    topic,
		cb:       circuit_breaker.New(recordLength, timeout, percentile, recoveryRequests),
		log:      log.Named("events"),
		now:      time.Now,
	}
}

func (l *activityLog) Publish(_ context.Context, ev kafka.EventActivity) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		l.log.Error("marshal event", zap.Error(err))
		return
	}
	msg := &sarama.ProducerMessage{Topic: l.topic, Value: sarama.ByteEncoder(data)}
	err = l.cb.Call(func() error {
		_, _, err := l.producer.SendMessage(msg)
		return err
	})
	if err != nil {
		l.log.Warn("publish event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

type nop struct{}

// Nop discards every event.
func Nop() Publisher { return nop{} }

func (nop) Publish(context.Context, kafka.EventActivity) {}
