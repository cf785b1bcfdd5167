package kafka

import (
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type Config struct {
	Addrs []string `envconfig:"KAFKA_ADDRS"`
	Topic string   `envconfig:"KAFKA_TOPIC" default:"catalog.activity"`
}

func (c Config) Enabled() bool {
	return len(c.brokers()) > 0
}

func (c Config) brokers() []string {
	addrs := make([]string, 0, len(c.Addrs))
	for _, addr := range c.Addrs {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Timeout = 5 * time.Second
	defaultCfg.Net.DialTimeout = 3 * time.Second

	return sarama.NewSyncProducer(cfg.brokers(), defaultCfg)
}

type EventType string

const (
	BookCreated  EventType = "BOOK_CREATED"
	BookUpdated  EventType = "BOOK_UPDATED"
	BookDeleted  EventType = "BOOK_DELETED"
	LoanBorrowed EventType = "LOAN_BORROWED"
	LoanReturned EventType = "LOAN_RETURNED"
)

// EventActivity is published after a catalog or loan mutation commits.
type EventActivity struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	UserID    int64     `json:"user_id,omitempty"`
	BookID    int64     `json:"book_id,omitempty"`
	CopyID    int64     `json:"copy_id,omitempty"`
	LoanID    int64     `json:"loan_id,omitempty"`
}
