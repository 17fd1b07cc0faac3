package yolo

import (
	"fmt"
	"sync"
)

// YoloDealer provisions lottery instances. It holds the wiring (token,
// providers, round template) but no round state: every round lives in
// the instance the dealer handed out, and the registry only grows.
type YoloDealer struct {
	mu sync.Mutex

	admin string
	addr  string

	coin       Token
	providers  map[int]RandomProvider
	activeSlot int
	hasActive  bool

	lotCfg *LotConfig

	registry []*YoloLot
	byID     map[string]*YoloLot
	nextLot  int

	logger Logger
}

// NewYoloDealer creates a dealer administered by admin. The dealer
// acts toward providers under its own identity, so it must be set as
// their operator.
func NewYoloDealer(admin string) *YoloDealer {
	return NewYoloDealerWithLogger(admin, &DefaultLogger{})
}

// NewYoloDealerWithLogger creates a dealer with a custom logger
func NewYoloDealerWithLogger(admin string, logger Logger) *YoloDealer {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	return &YoloDealer{
		admin:     admin,
		addr:      fmt.Sprintf("yolo-dealer-%s", admin),
		providers: make(map[int]RandomProvider),
		lotCfg:    DefaultLotConfig(),
		byID:      make(map[string]*YoloLot),
		logger:    logger,
	}
}

// Address returns the identity the dealer uses toward providers
func (d *YoloDealer) Address() string { return d.addr }

// SetRandomProvider registers a provider under the given slot; admin
// only. The first registered slot becomes the active one.
func (d *YoloDealer) SetRandomProvider(caller string, slot int, provider RandomProvider) error {
	if provider == nil {
		return ErrInvalidParameters.WithDetails("provider must not be nil")
	}
	if slot < 0 {
		return ErrInvalidParameters.WithDetails("provider slot must not be negative, got %d", slot)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if caller != d.admin {
		d.logger.Error("SetRandomProvider rejected: caller=%s is not the admin", caller)
		return ErrUnauthorizedAdmin
	}

	d.providers[slot] = provider
	if !d.hasActive {
		d.activeSlot = slot
		d.hasActive = true
	}

	d.logger.Info("Provider registered at slot %d (active=%d)", slot, d.activeSlot)
	return nil
}

// UseProvider switches the active provider slot; admin only
func (d *YoloDealer) UseProvider(caller string, slot int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if caller != d.admin {
		d.logger.Error("UseProvider rejected: caller=%s is not the admin", caller)
		return ErrUnauthorizedAdmin
	}
	if _, ok := d.providers[slot]; !ok {
		return ErrInvalidParameters.WithDetails("no provider registered at slot %d", slot)
	}

	d.activeSlot = slot
	d.logger.Info("Active provider switched to slot %d", slot)
	return nil
}

// SetRNGCapacity pushes an outstanding-request limit to the provider
// at the given slot; admin only
func (d *YoloDealer) SetRNGCapacity(caller string, slot int, limit int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if caller != d.admin {
		d.logger.Error("SetRNGCapacity rejected: caller=%s is not the admin", caller)
		return ErrUnauthorizedAdmin
	}

	provider, ok := d.providers[slot]
	if !ok {
		return ErrInvalidParameters.WithDetails("no provider registered at slot %d", slot)
	}

	if err := provider.SetCapacity(d.addr, limit); err != nil {
		d.logger.Error("SetRNGCapacity failed for slot %d: %v", slot, err)
		return err
	}

	d.logger.Info("Capacity %d pushed to provider slot %d", limit, slot)
	return nil
}

// SetYoloCoin wires the token all provisioned instances will use;
// admin only
func (d *YoloDealer) SetYoloCoin(caller string, coin Token) error {
	if coin == nil {
		return ErrInvalidParameters.WithDetails("token must not be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if caller != d.admin {
		d.logger.Error("SetYoloCoin rejected: caller=%s is not the admin", caller)
		return ErrUnauthorizedAdmin
	}

	d.coin = coin
	d.logger.Info("Token wired into dealer")
	return nil
}

// SetYoloLot sets the round template used for new instances; admin only
func (d *YoloDealer) SetYoloLot(caller string, cfg *LotConfig) error {
	if cfg == nil {
		return ErrInvalidParameters.WithDetails("config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if caller != d.admin {
		d.logger.Error("SetYoloLot rejected: caller=%s is not the admin", caller)
		return ErrUnauthorizedAdmin
	}

	template := *cfg
	d.lotCfg = &template
	d.logger.Info("Round template set: winners=%d duration=%v", cfg.Winners, cfg.RoundDuration)
	return nil
}

// GetYoloLottery provisions a fresh lottery instance bound to the
// wired token and the active provider, registers it as a provider
// consumer, and appends it to the registry. The dealer must have both
// a token and a provider wired first.
func (d *YoloDealer) GetYoloLottery(caller string) (*YoloLot, error) {
	if err := validateAccount(caller); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.coin == nil {
		return nil, ErrNotConfigured.WithDetails("no token wired")
	}
	if !d.hasActive {
		return nil, ErrNotConfigured.WithDetails("no provider wired")
	}
	provider := d.providers[d.activeSlot]

	d.nextLot++
	id := fmt.Sprintf("yolo-lot-%d", d.nextLot)

	lot, err := NewYoloLotWithLogger(id, d.coin, provider, d.lotCfg, d.logger)
	if err != nil {
		return nil, err
	}

	if err := provider.SetConsumer(d.addr, id); err != nil {
		d.logger.Error("GetYoloLottery failed: consumer registration rejected: %v", err)
		d.nextLot--
		return nil, err
	}

	d.registry = append(d.registry, lot)
	d.byID[id] = lot

	d.logger.Info("Lottery %s provisioned for %s (provider slot %d)", id, caller, d.activeSlot)
	return lot, nil
}

// Lotteries returns every instance ever provisioned, oldest first
func (d *YoloDealer) Lotteries() []*YoloLot {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*YoloLot, len(d.registry))
	copy(out, d.registry)
	return out
}

// Lottery returns the instance with the given id, or nil
func (d *YoloDealer) Lottery(id string) *YoloLot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.byID[id]
}
