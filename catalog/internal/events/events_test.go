package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/circuit_breaker"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublisher_Publish(t *testing.T) {
	t.Parallel()
	ts := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "activity" {
			return errors.Errorf("topic %q", msg.Topic)
		}
		b, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev kafka.EventActivity
		if err := json.Unmarshal(b, &ev); err != nil {
			return err
		}
		if ev.Type != kafka.LoanBorrowed || ev.LoanID != 5 || !ev.Timestamp.Equal(ts) {
			return errors.Errorf("unexpected event %+v", ev)
		}
		return nil
	})

	p := NewPublisher(producer, "activity", zap.NewNop())
	p.now = func() time.Time { return ts }
	p.Publish(context.Background(), kafka.EventActivity{Type: kafka.LoanBorrowed, UserID: 1, CopyID: 7, LoanID: 5})
	require.NoError(t, producer.Close())
}

func TestPublisher_BrokerDown(t *testing.T) {
	t.Parallel()
	producer := mocks.NewSyncProducer(t, nil)
	p := NewPublisher(producer, "activity", zap.NewNop())

	// half of the window failing opens the breaker; later events never reach the producer
	for i := 0; i < 5; i++ {
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	}
	for i := 0; i < 5; i++ {
		p.Publish(context.Background(), kafka.EventActivity{Type: kafka.BookCreated, BookID: int64(i)})
	}
	require.Equal(t, circuit_breaker.Open, p.cb.State())

	p.Publish(context.Background(), kafka.EventActivity{Type: kafka.BookDeleted, BookID: 9})
	require.NoError(t, producer.Close())
}

func TestNop(t *testing.T) {
	t.Parallel()
	require.NotPanics(t, func() {
		Nop().Publish(context.Background(), kafka.EventActivity{Type: kafka.BookUpdated})
	})
}
