package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter builds the outbox producer. Messages are keyed by order id, so
// the hash balancer keeps every event of one order on one partition.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
}
