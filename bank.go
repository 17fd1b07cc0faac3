package yolo

import (
	"sync"
	"time"
)

// YoloBank sells freshly minted tokens for native value during a
// time-boxed sale and redeems them afterwards. The bank must be the
// token's registered minter: bought tokens are minted and redeemed
// tokens are burned, so circulating supply always matches the reserve
// at the configured price.
type YoloBank struct {
	mu sync.Mutex

	admin string
	addr  string
	coin  *YoloCoin

	price    uint64 // token units minted per native unit
	target   uint64 // reserve level at which the sale closes
	deadline time.Time
	reserve  uint64

	logger Logger
	now    func() time.Time
}

// NewYoloBank creates a bank selling the given token. The sale runs
// until either the deadline passes or the reserve reaches target.
func NewYoloBank(admin string, coin *YoloCoin, price, target uint64, duration time.Duration) (*YoloBank, error) {
	return NewYoloBankWithLogger(admin, coin, price, target, duration, &DefaultLogger{})
}

// NewYoloBankWithLogger creates a bank with a custom logger
func NewYoloBankWithLogger(admin string, coin *YoloCoin, price, target uint64, duration time.Duration, logger Logger) (*YoloBank, error) {
	if coin == nil {
		return nil, ErrInvalidParameters.WithDetails("token must not be nil")
	}
	if price == 0 {
		return nil, ErrInvalidParameters.WithDetails("price must be positive")
	}
	if duration <= 0 {
		return nil, ErrInvalidParameters.WithDetails("sale duration must be positive")
	}
	if logger == nil {
		logger = &DefaultLogger{}
	}

	return &YoloBank{
		admin:    admin,
		addr:     "yolo-bank",
		coin:     coin,
		price:    price,
		target:   target,
		deadline: time.Now().Add(duration),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Address returns the bank's account identity
func (b *YoloBank) Address() string { return b.addr }

// Price returns how many token units one native unit buys
func (b *YoloBank) Price() uint64 { return b.price }

// Reserve returns the native value currently backing the supply
func (b *YoloBank) Reserve() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.reserve
}

// SaleOpen reports whether Buy is still accepted
func (b *YoloBank) SaleOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.saleOpenLocked()
}

func (b *YoloBank) saleOpenLocked() bool {
	return b.now().Before(b.deadline) && b.reserve < b.target
}

// Buy accepts native value and mints value*price tokens to the buyer.
// Once the deadline passes or the reserve target is reached the sale
// is closed and Buy is rejected.
func (b *YoloBank) Buy(buyer string, value uint64) error {
	if err := validateAccount(buyer); err != nil {
		return err
	}
	if err := validateAmount(value); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Debug("Buy: buyer=%s value=%d reserve=%d", buyer, value, b.reserve)

	if !b.saleOpenLocked() {
		b.logger.Error("Buy rejected: sale closed (reserve=%d target=%d)", b.reserve, b.target)
		return ErrSaleClosed
	}

	minted := value * b.price
	if err := b.coin.Mint(b.addr, buyer, minted); err != nil {
		b.logger.Error("Buy failed: mint rejected: %v", err)
		return err
	}
	b.reserve += value

	b.logger.Info("Buy: buyer=%s paid=%d minted=%d reserve=%d", buyer, value, minted, b.reserve)
	return nil
}

// Sell redeems tokens for native value at the sale price. The seller
// must have granted the bank an allowance first; the tokens are
// pulled, burned, and amount/price native is paid from the reserve.
// Redemption stays open after the sale closes. The amount must be a
// whole multiple of the price so the refund is exact.
func (b *YoloBank) Sell(seller string, amount uint64) error {
	if err := validateAccount(seller); err != nil {
		return err
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if amount%b.price != 0 {
		return ErrInvalidAmount.WithDetails("amount %d is not a multiple of price %d", amount, b.price)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Debug("Sell: seller=%s amount=%d reserve=%d", seller, amount, b.reserve)

	refund := amount / b.price
	if refund > b.reserve {
		b.logger.Error("Sell rejected: refund %d exceeds reserve %d", refund, b.reserve)
		return ErrInsufficientReserve.WithDetails("refund %d exceeds reserve %d", refund, b.reserve)
	}

	if err := b.coin.TransferFrom(b.addr, seller, b.addr, amount); err != nil {
		b.logger.Error("Sell failed: token pull rejected: %v", err)
		return ErrTokenTransferFailed.WithCause(err)
	}
	if err := b.coin.Burn(b.addr, b.addr, amount); err != nil {
		// Pull succeeded but burn did not; return the tokens
		if rerr := b.coin.Transfer(b.addr, seller, amount); rerr != nil {
			b.logger.Error("Sell failed: burn and refund both rejected: %v, %v", err, rerr)
		}
		return err
	}
	b.reserve -= refund

	b.logger.Info("Sell: seller=%s burned=%d refunded=%d reserve=%d", seller, amount, refund, b.reserve)
	return nil
}
