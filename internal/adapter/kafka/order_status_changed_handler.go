package kafka

import (
	"context"

	"github.com/javieralejandro89/beztshop-checkout/internal/usecase"
)

// OrderStatusChangedHandler feeds payment settlements back into the
// checkout engine: a SUCCESS event completes the pending session, any
// other status releases it for retry.
type OrderStatusChangedHandler struct {
	Engine *usecase.Engine
}

func NewOrderStatusChangedHandler(engine *usecase.Engine) *OrderStatusChangedHandler {
	return &OrderStatusChangedHandler{Engine: engine}
}

func (h *OrderStatusChangedHandler) Handle(ctx context.Context, ev usecase.OrderStatusChangedMsg) error {
	success := ev.Status == "SUCCESS"
	return h.Engine.ResolvePayment(ctx, ev.OrderID, success, ev.OrderNumber)
}
