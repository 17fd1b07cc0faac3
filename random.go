package yolo

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"sync"
	"time"
)

// FulfillMode controls how a MockRandomProvider delivers values
type FulfillMode int

const (
	// FulfillAuto delivers crypto/rand values immediately on request
	FulfillAuto FulfillMode = iota

	// FulfillDeterministic delivers seeded math/rand values immediately,
	// for replayable tests
	FulfillDeterministic

	// FulfillManual leaves requests pending until Fulfill is called
	FulfillManual
)

// RandomnessRequest is a provider-side request record
type RandomnessRequest struct {
	ID          uint64        `json:"id"`
	Requester   string        `json:"requester"`
	Count       int           `json:"count"`
	Status      RequestStatus `json:"status"`
	Values      []uint64      `json:"values,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
}

// MockRandomProvider implements the asynchronous request/fulfill
// randomness protocol. Consumers poll GetRandomNumber until their
// request flips to RequestFulfilled; administration is operator-only.
type MockRandomProvider struct {
	mu sync.Mutex

	operator  string
	consumers map[string]bool
	capacity  int
	mode      FulfillMode
	rng       *mathrand.Rand

	nextID   uint64
	pending  int
	requests map[uint64]*RandomnessRequest
	events   []RequestEvent

	logger Logger
}

// NewMockRandomProvider creates a provider that auto-fulfills requests
func NewMockRandomProvider(operator string) *MockRandomProvider {
	return newProvider(operator, FulfillAuto, nil, &DefaultLogger{})
}

// NewDeterministicRandomProvider creates a provider that fulfills
// requests immediately from a seeded source, so runs are replayable
func NewDeterministicRandomProvider(operator string, seed int64) *MockRandomProvider {
	return newProvider(operator, FulfillDeterministic, mathrand.New(mathrand.NewSource(seed)), NewSilentLogger())
}

// NewManualRandomProvider creates a provider whose requests stay
// pending until Fulfill is called
func NewManualRandomProvider(operator string) *MockRandomProvider {
	return newProvider(operator, FulfillManual, nil, &DefaultLogger{})
}

func newProvider(operator string, mode FulfillMode, rng *mathrand.Rand, logger Logger) *MockRandomProvider {
	return &MockRandomProvider{
		operator:  operator,
		consumers: make(map[string]bool),
		mode:      mode,
		rng:       rng,
		nextID:    1,
		requests:  make(map[uint64]*RandomnessRequest),
		logger:    logger,
	}
}

// SetLogger replaces the provider's logger
func (p *MockRandomProvider) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
}

// SetConsumer registers an authorized consumer; operator only
func (p *MockRandomProvider) SetConsumer(caller, consumer string) error {
	if err := validateAccount(consumer); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.operator {
		p.logger.Error("SetConsumer rejected: caller=%s is not the operator", caller)
		return ErrUnauthorizedOperator
	}

	p.consumers[consumer] = true
	p.logger.Info("Consumer registered: %s", consumer)
	return nil
}

// SetCapacity limits concurrently outstanding requests; operator only.
// A limit of 0 means unlimited.
func (p *MockRandomProvider) SetCapacity(caller string, limit int) error {
	if limit < 0 {
		return ErrInvalidParameters.WithDetails("capacity must not be negative, got %d", limit)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.operator {
		p.logger.Error("SetCapacity rejected: caller=%s is not the operator", caller)
		return ErrUnauthorizedOperator
	}

	p.capacity = limit
	p.logger.Info("Provider capacity set to %d", limit)
	return nil
}

// RequestRandomNumber registers a request for count values and returns
// its id; consumer only. With capacity N, the request fails while N
// requests are already outstanding.
func (p *MockRandomProvider) RequestRandomNumber(consumer string, count int) (uint64, error) {
	if count <= 0 {
		return 0, ErrInvalidParameters.WithDetails("value count must be positive, got %d", count)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.consumers[consumer] {
		p.logger.Error("RequestRandomNumber rejected: %s is not a registered consumer", consumer)
		return 0, ErrUnauthorizedConsumer
	}
	if p.capacity > 0 && p.pending >= p.capacity {
		p.logger.Error("RequestRandomNumber rejected: %d pending requests at capacity %d",
			p.pending, p.capacity)
		return 0, ErrProviderAtCapacity.WithDetails("%d of %d requests outstanding", p.pending, p.capacity)
	}

	req := &RandomnessRequest{
		ID:          p.nextID,
		Requester:   consumer,
		Count:       count,
		Status:      RequestPending,
		RequestedAt: time.Now(),
	}
	p.nextID++
	p.pending++
	p.requests[req.ID] = req
	p.events = append(p.events, RequestEvent{RequestID: req.ID, Requester: consumer})

	p.logger.Debug("Request %d accepted for %s (count=%d)", req.ID, consumer, count)

	switch p.mode {
	case FulfillAuto:
		p.fulfillLocked(req, cryptoValues(count))
	case FulfillDeterministic:
		values := make([]uint64, count)
		for i := range values {
			values[i] = p.rng.Uint64()
		}
		p.fulfillLocked(req, values)
	}

	return req.ID, nil
}

// GetRandomNumber returns the request's status and, once fulfilled,
// its values. It never blocks; a pending request yields
// (RequestPending, nil, nil) so the consumer can poll.
func (p *MockRandomProvider) GetRandomNumber(consumer string, requestID uint64) (RequestStatus, []uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.consumers[consumer] {
		return RequestPending, nil, ErrUnauthorizedConsumer
	}

	req, ok := p.requests[requestID]
	if !ok || req.Requester != consumer {
		return RequestPending, nil, ErrInvalidRequest.WithDetails("request %d not found for %s", requestID, consumer)
	}
	if req.Status != RequestFulfilled {
		return RequestPending, nil, nil
	}

	values := make([]uint64, len(req.Values))
	copy(values, req.Values)
	return RequestFulfilled, values, nil
}

// Fulfill delivers values for a pending request. Unknown or already
// fulfilled ids are rejected, and the value count must match the request.
func (p *MockRandomProvider) Fulfill(requestID uint64, values []uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[requestID]
	if !ok {
		return ErrInvalidRequest.WithDetails("request %d not found", requestID)
	}
	if req.Status == RequestFulfilled {
		return ErrInvalidRequest.WithDetails("request %d already fulfilled", requestID)
	}
	if len(values) != req.Count {
		return ErrInvalidRequest.WithDetails("request %d expects %d values, got %d",
			requestID, req.Count, len(values))
	}

	p.fulfillLocked(req, values)
	return nil
}

// PendingRequests returns the number of unfulfilled requests
func (p *MockRandomProvider) PendingRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.pending
}

// Events returns a copy of the request event log
func (p *MockRandomProvider) Events() []RequestEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := make([]RequestEvent, len(p.events))
	copy(events, p.events)
	return events
}

// Request returns a copy of the request record, for inspection
func (p *MockRandomProvider) Request(requestID uint64) (RandomnessRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[requestID]
	if !ok {
		return RandomnessRequest{}, false
	}

	snapshot := *req
	snapshot.Values = make([]uint64, len(req.Values))
	copy(snapshot.Values, req.Values)
	return snapshot, true
}

// fulfillLocked marks a request fulfilled; callers hold p.mu
func (p *MockRandomProvider) fulfillLocked(req *RandomnessRequest, values []uint64) {
	req.Values = values
	req.Status = RequestFulfilled
	p.pending--

	p.logger.Debug("Request %d fulfilled with %d values", req.ID, len(values))
}

// cryptoValues draws count values from crypto/rand
func cryptoValues(count int) []uint64 {
	values := make([]uint64, count)
	buf := make([]byte, 8)
	for i := range values {
		if _, err := rand.Read(buf); err != nil {
			values[i] = uint64(time.Now().UnixNano())
			continue
		}
		values[i] = binary.BigEndian.Uint64(buf)
	}
	return values
}
