package services

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/tehshkola/apiserver/internal/mq"
	"github.com/tehshkola/apiserver/types"
	"go.uber.org/zap"
)

// OrderEvents publishes order lifecycle notifications for the back office.
// A nil *OrderEvents is valid and publishes nothing, for deployments without
// a broker. Publishing is best effort: a broker failure is logged and never
// affects the purchase or refund outcome.
type OrderEvents struct {
	mq      *mq.MQ
	channel string
	logger  *zap.Logger
}

func NewOrderEvents(broker *mq.MQ, channel string, logger *zap.Logger) *OrderEvents {
	return &OrderEvents{
		mq:      broker,
		channel: channel,
		logger:  logger,
	}
}

type orderEvent struct {
	Type  string      `json:"type"`
	Order types.Order `json:"order,omitempty"`
	ID    int         `json:"id,omitempty"`
}

// Created announces a freshly placed order.
func (e *OrderEvents) Created(ctx context.Context, order types.Order) {
	e.publish(ctx, orderEvent{Type: "order.created", Order: order}, order.ID)
}

// StatusChanged announces a lifecycle transition.
func (e *OrderEvents) StatusChanged(ctx context.Context, id int, status types.OrderStatus) {
	e.publish(ctx, orderEvent{Type: "order." + string(status), ID: id}, id)
}

func (e *OrderEvents) publish(ctx context.Context, event orderEvent, orderID int) {
	if e == nil || e.mq == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	attrs := map[string]string{"order_id": strconv.Itoa(orderID)}
	if _, err := e.mq.Publish(ctx, e.channel, data, attrs); err != nil {
		e.logger.Warn("order event publish failed",
			zap.String("type", event.Type),
			zap.Int("order_id", orderID),
			zap.Error(err),
		)
	}
}
