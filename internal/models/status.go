package models

// Status is an order's lifecycle state.
type Status string

const (
	StatusPlaced         Status = "PLACED"
	StatusAccepted       Status = "ACCEPTED"
	StatusPreparing      Status = "PREPARING"
	StatusReady          Status = "READY"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
	StatusRejected       Status = "REJECTED"
)

// validNext holds the only legal edges. Orders move forward one step at a
// time; CANCELLED and REJECTED are reachable from PLACED only.
var validNext = map[Status]map[Status]bool{
	StatusPlaced:         {StatusAccepted: true, StatusCancelled: true, StatusRejected: true},
	StatusAccepted:       {StatusPreparing: true},
	StatusPreparing:      {StatusReady: true},
	StatusReady:          {StatusOutForDelivery: true},
	StatusOutForDelivery: {StatusDelivered: true},
	StatusDelivered:      {},
	StatusCancelled:      {},
	StatusRejected:       {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no edge leaves s.
func (s Status) IsTerminal() bool {
	return len(validNext[s]) == 0
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := validNext[s]
	return ok
}

// Reasons attached to system-driven terminal transitions.
const (
	ReasonNoSellerResponse = "no seller response"
)
