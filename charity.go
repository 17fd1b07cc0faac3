package yolo

import (
	"sort"
	"sync"
)

// Donation is one donor's accumulated contribution
type Donation struct {
	Donor  string `json:"donor"`
	Amount uint64 `json:"amount"`
}

// SimpleCharity is a donation ledger. Anyone may deposit; only the
// owner may pay the accumulated fund out to the receiver.
type SimpleCharity struct {
	mu sync.Mutex

	owner    string
	receiver string

	fund      uint64
	donations map[string]uint64
	order     []string // donors by first donation

	logger Logger
}

// NewSimpleCharity creates a charity paying out to receiver
func NewSimpleCharity(owner, receiver string) *SimpleCharity {
	return NewSimpleCharityWithLogger(owner, receiver, &DefaultLogger{})
}

// NewSimpleCharityWithLogger creates a charity with a custom logger
func NewSimpleCharityWithLogger(owner, receiver string, logger Logger) *SimpleCharity {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	return &SimpleCharity{
		owner:     owner,
		receiver:  receiver,
		donations: make(map[string]uint64),
		logger:    logger,
	}
}

// GetReceiver returns the configured payout receiver
func (c *SimpleCharity) GetReceiver() string { return c.receiver }

// Fund returns the undistributed donation total
func (c *SimpleCharity) Fund() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fund
}

// Deposit records a donation from donor
func (c *SimpleCharity) Deposit(donor string, value uint64) error {
	if err := validateAccount(donor); err != nil {
		return err
	}
	if err := validateAmount(value); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.donations[donor]; !ok {
		c.order = append(c.order, donor)
	}
	c.donations[donor] += value
	c.fund += value

	c.logger.Info("Donation: donor=%s value=%d total=%d fund=%d",
		donor, value, c.donations[donor], c.fund)
	return nil
}

// GetDonation returns the donor's accumulated contribution
func (c *SimpleCharity) GetDonation(donor string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.donations[donor]
}

// TopDonors returns up to n donors by contribution, descending.
// Equal contributions keep first-donation order.
func (c *SimpleCharity) TopDonors(n int) []Donation {
	c.mu.Lock()
	defer c.mu.Unlock()

	ranked := make([]Donation, 0, len(c.order))
	for _, donor := range c.order {
		ranked = append(ranked, Donation{Donor: donor, Amount: c.donations[donor]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount > ranked[j].Amount
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	return ranked[:n]
}

// GetTopDonator returns the single largest donor, if any
func (c *SimpleCharity) GetTopDonator() (Donation, bool) {
	top := c.TopDonors(1)
	if len(top) == 0 {
		return Donation{}, false
	}
	return top[0], true
}

// Withdraw pays the accumulated fund to the receiver; owner only.
// It returns the paid amount, which may be zero.
func (c *SimpleCharity) Withdraw(caller string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.owner {
		c.logger.Error("Withdraw rejected: caller=%s is not the owner", caller)
		return 0, ErrUnauthorizedOwner
	}

	paid := c.fund
	c.fund = 0

	c.logger.Info("Charity payout: receiver=%s amount=%d", c.receiver, paid)
	return paid, nil
}
