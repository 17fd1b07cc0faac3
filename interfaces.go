package yolo

// Token is the fungible-token surface the game suite consumes.
// All inbound value arrives by pull: the spender must have been
// granted an allowance before TransferFrom succeeds.
type Token interface {
	// BalanceOf returns the balance of the given account
	BalanceOf(account string) uint64

	// Transfer moves amount from the caller's account to another
	Transfer(from, to string, amount uint64) error

	// TransferFrom moves amount from one account to another on behalf
	// of spender, consuming spender's allowance on the from account
	TransferFrom(spender, from, to string, amount uint64) error

	// Allowance returns how much spender may move out of owner's account
	Allowance(owner, spender string) uint64

	// IncreaseAllowance grants spender an additional allowance on the
	// owner's account
	IncreaseAllowance(owner, spender string, amount uint64) error
}

// RequestStatus is the fulfillment status of a randomness request
type RequestStatus int

const (
	// RequestPending means the provider has not delivered values yet
	RequestPending RequestStatus = iota

	// RequestFulfilled means the values have been delivered
	RequestFulfilled
)

// String returns a human-readable request status
func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "Pending"
	case RequestFulfilled:
		return "Fulfilled"
	default:
		return "Unknown"
	}
}

// RequestEvent is emitted when a randomness request is accepted, so
// the consumer can observe its own request id even when fulfillment
// arrives out of band
type RequestEvent struct {
	RequestID uint64 `json:"request_id"`
	Requester string `json:"requester"`
}

// RandomProvider is the request/fulfill protocol between a randomness
// consumer and a provider. Requests are asynchronous: RequestRandomNumber
// only registers the request, and GetRandomNumber never blocks — the
// consumer polls until the status flips to RequestFulfilled.
type RandomProvider interface {
	// SetConsumer registers an authorized consumer; operator only
	SetConsumer(caller, consumer string) error

	// SetCapacity limits concurrently outstanding requests; operator
	// only; 0 means unlimited
	SetCapacity(caller string, limit int) error

	// RequestRandomNumber registers a request for count values and
	// returns its provider-scoped id; consumer only
	RequestRandomNumber(consumer string, count int) (uint64, error)

	// GetRandomNumber returns the request's status and, once
	// fulfilled, its values; consumer only, never blocks
	GetRandomNumber(consumer string, requestID uint64) (RequestStatus, []uint64, error)

	// PendingRequests returns the number of unfulfilled requests
	PendingRequests() int

	// Events returns a copy of the request event log
	Events() []RequestEvent
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}
