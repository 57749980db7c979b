package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"festival-tickets/internal/models"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	Writer   *kafka.Writer
	MockMode bool
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// NewMockProducer returns a producer that logs instead of publishing. Used
// when Kafka is disabled or unreachable in development.
func NewMockProducer() *Producer {
	return &Producer{MockMode: true}
}

// PublishTicketCreated streams a ticket-created event after a page has been
// persisted. Failures here are the caller's to log; they never fail the page.
func (p *Producer) PublishTicketCreated(ctx context.Context, ticket models.Ticket) error {
	msgBytes, err := json.Marshal(ticket)
	if err != nil {
		return err
	}

	if p.MockMode {
		fmt.Printf("Mock publish [ticket_created]: %s\n", string(msgBytes))
		return nil
	}

	return p.Writer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(ticket.ID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	if p.Writer != nil {
		return p.Writer.Close()
	}
	return nil
}
