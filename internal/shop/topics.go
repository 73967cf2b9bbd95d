package shop

const (
	TopicOrderCreated     = "shop.order.created"
	TopicOrderPaid        = "shop.order.paid"
	TopicPaymentFailed    = "shop.payment.failed"
	TopicOrderDelivered   = "shop.order.delivered"
	TopicStockAdjustFails = "shop.stock.adjust_failed"
)

// Partition key = order_id so every event for one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
