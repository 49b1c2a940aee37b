package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-order-service/internal/broker"
	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

// Subscription yields the change events of one collection in delivery order.
type Subscription interface {
	Next(ctx context.Context) (model.ChangeEvent, error)
	Close() error
}

type Stream interface {
	Subscribe(ctx context.Context, branchID, schema, table string) (Subscription, error)
}

type KafkaStreamConfig struct {
	Brokers     []string
	TopicPrefix string
	GroupID     string
}

// KafkaStream reads the change topics <prefix>.<branch>.<schema>.<table>.
type KafkaStream struct {
	cfg    KafkaStreamConfig
	logger logger.ZapLogger
}

func NewKafkaStream(cfg KafkaStreamConfig, log logger.ZapLogger) *KafkaStream {
	return &KafkaStream{cfg: cfg, logger: log}
}

func Topic(prefix, branchID, schema, table string) string {
	return strings.Join([]string{prefix, branchID, schema, table}, ".")
}

func (s *KafkaStream) Subscribe(ctx context.Context, branchID, schema, table string) (Subscription, error) {
	if err := broker.Ping(ctx, s.cfg.Brokers); err != nil {
		return nil, errors.Wrap(err, "KafkaStream.Subscribe.Ping")
	}

	topic := Topic(s.cfg.TopicPrefix, branchID, schema, table)
	consumer := broker.NewConsumer(&broker.Config{
		Brokers: s.cfg.Brokers,
		Topic:   topic,
		GroupID: s.cfg.GroupID + "." + branchID,
	})
	return &kafkaSubscription{
		consumer: consumer,
		schema:   schema,
		table:    table,
		branchID: branchID,
		logger:   s.logger.With(zap.String("topic", topic)),
	}, nil
}

type kafkaSubscription struct {
	consumer *broker.KafkaConsumer
	schema   string
	table    string
	branchID string
	logger   logger.ZapLogger
}

// Next skips messages that do not decode; they cannot be retried into shape.
func (s *kafkaSubscription) Next(ctx context.Context) (model.ChangeEvent, error) {
	for {
		msg, err := s.consumer.ReadMessage(ctx)
		if err != nil {
			return model.ChangeEvent{}, errors.Wrap(err, "kafkaSubscription.Next.ReadMessage")
		}

		var ev model.ChangeEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			s.logger.Error("Failed to unmarshal change event", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}
		if ev.Schema == "" {
			ev.Schema = s.schema
		}
		if ev.Table == "" {
			ev.Table = s.table
		}
		if ev.BranchID == "" {
			ev.BranchID = s.branchID
		}
		return ev, nil
	}
}

func (s *kafkaSubscription) Close() error {
	return s.consumer.Close()
}
