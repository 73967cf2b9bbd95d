package shop

type DeliveryStatus string

const (
	StatusPending    DeliveryStatus = "pending"
	StatusProcessing DeliveryStatus = "processing"
	StatusShipped    DeliveryStatus = "shipped"
	StatusDelivered  DeliveryStatus = "delivered"
	StatusCancelled  DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

const (
	MethodStripe = "stripe"
	MethodPaypal = "paypal"
)

func ValidPaymentMethod(m string) bool {
	return m == MethodStripe || m == MethodPaypal
}

// Processor intent statuses we care about.
const IntentSucceeded = "succeeded"
