package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/gothglitter/storefront/pkg/kafka"
	"github.com/gothglitter/storefront/pkg/logger"
	"github.com/gothglitter/storefront/services/storefront/internal/domain"
)

// TopicInventoryChanged carries every stock movement.
var TopicInventoryChanged = pkgkafka.Topic("inventory", "changed")

const (
	AggregateTypeProduct = "product"
	SourceStorefront     = "storefront"
)

// publisher is the part of pkgkafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishStockChanged publishes an inventory.changed event keyed by product.
func (p *Producer) PublishStockChanged(ctx context.Context, change domain.StockChange) error {
	evt, err := pkgkafka.NewEvent(TopicInventoryChanged, change.ProductID, AggregateTypeProduct, SourceStorefront, change)
	if err != nil {
		return fmt.Errorf("create inventory.changed event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	evt.WithMetadata("action", change.Action)

	if err := p.kafka.Publish(ctx, TopicInventoryChanged, evt); err != nil {
		return fmt.Errorf("publish inventory.changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published inventory.changed event",
		slog.String("product_id", change.ProductID),
		slog.String("action", change.Action),
		slog.Int("available", change.Available),
	)
	return nil
}
