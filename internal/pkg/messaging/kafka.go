// Package messaging publica os fatos de domínio da outbox no Kafka.
package messaging

import (
	"context"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"laststock/internal/domain"
)

// Publisher é o contrato consumido pelo relay da outbox.
type Publisher interface {
	Publish(ctx context.Context, e domain.OutboxEvent) error
	Close() error
}

// messageWriter é o subconjunto do writer instrumentado usado aqui.
type messageWriter interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher publica cada fato como uma mensagem chaveada pelo agregado,
// preservando a ordem por agregado dentro da partição.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher cria o writer kafka-go instrumentado com OpenTelemetry.
func NewKafkaPublisher(broker, topic, clientID string, tp trace.TracerProvider) (*KafkaPublisher, error) {
	base := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}

	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(topic),
			attribute.String("messaging.kafka.client_id", clientID),
		}),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{writer: writer}, nil
}

// Publish envia um fato. Headers carregam o tipo e o id para deduplicação no consumidor.
func (p *KafkaPublisher) Publish(ctx context.Context, e domain.OutboxEvent) error {
	return p.writer.WriteMessage(ctx, ToMessage(e))
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ToMessage converte um fato da outbox em mensagem Kafka.
func ToMessage(e domain.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(e.AggregateType + ":" + e.AggregateID),
		Value: e.Payload,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
			{Key: "event_type", Value: []byte(e.EventType)},
		},
	}
}
