package event

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	TypeOrderCreated = "order.created"
	TypeOrderDeleted = "order.deleted"
)

// Message 是写入 Kafka 的订单生命周期事件。
type Message struct {
	EventID     string  `json:"event_id"`
	Type        string  `json:"type"`
	OrderID     uint    `json:"order_id"`
	UserID      int64   `json:"user_id"`
	TotalAmount float64 `json:"total_amount"`
}

// NewMessage builds a lifecycle event with a fresh event id.
func NewMessage(typ string, orderID uint, userID int64, totalAmount float64) Message {
	return Message{
		EventID:     uuid.New().String(),
		Type:        typ,
		OrderID:     orderID,
		UserID:      userID,
		TotalAmount: totalAmount,
	}
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m Message) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.Type != TypeOrderCreated && m.Type != TypeOrderDeleted {
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	if m.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	if m.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	return nil
}
