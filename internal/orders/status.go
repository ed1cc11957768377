package orders

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	// FULFILLED is set by operator tooling once shipping completes; webhook
	// processing stops at PAID.
	StatusFulfilled Status = "FULFILLED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true, StatusFailed: true},
	StatusPaid:      {StatusFulfilled: true, StatusCancelled: true, StatusFailed: true, StatusRefunded: true},
	StatusFulfilled: {StatusRefunded: true},
	StatusCancelled: {},
	StatusFailed:    {},
	StatusRefunded:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no transition ever leaves s.
func IsTerminal(s Status) bool {
	return s == StatusCancelled || s == StatusFailed || s == StatusRefunded
}

// FulfillmentStage is the operator-driven shipment axis, independent of
// payment status and monotonic.
type FulfillmentStage string

const (
	FulfillmentNotStarted FulfillmentStage = "NOT_STARTED"
	FulfillmentPreparing  FulfillmentStage = "PREPARING"
	FulfillmentDispatched FulfillmentStage = "DISPATCHED"
	FulfillmentDelivered  FulfillmentStage = "DELIVERED"
)

var fulfillmentRank = map[FulfillmentStage]int{
	FulfillmentNotStarted: 0,
	FulfillmentPreparing:  1,
	FulfillmentDispatched: 2,
	FulfillmentDelivered:  3,
}

func ValidFulfillment(s FulfillmentStage) bool {
	_, ok := fulfillmentRank[s]
	return ok
}

// CanAdvanceFulfillment allows forward movement only (same stage is a no-op
// handled by the caller).
func CanAdvanceFulfillment(from, to FulfillmentStage) bool {
	fr, ok1 := fulfillmentRank[from]
	tr, ok2 := fulfillmentRank[to]
	return ok1 && ok2 && tr >= fr
}
