package usecase

// Published to RabbitMQ when a checkout reaches a paid order.
type CheckoutCompletedMsg struct {
	SessionID   string `json:"sessionId"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
	TotalCents  int64  `json:"totalCents"`
	Currency    string `json:"currency"`
	CouponCode  string `json:"couponCode,omitempty"`
}

// Sent by the storefront backend on Kafka once the payment collector
// settles an order that left checkout in the payment-pending state.
type OrderStatusChangedMsg struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
	Status      string `json:"status"` // e.g. "SUCCESS"
}
