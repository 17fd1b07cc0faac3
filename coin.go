package yolo

import "sync"

// YoloCoin is the in-memory fungible token used across the game suite.
// Supply changes only through the registered minter.
type YoloCoin struct {
	mu sync.RWMutex

	name     string
	symbol   string
	decimals uint8
	minter   string

	totalSupply uint64
	balances    map[string]uint64
	allowances  map[string]map[string]uint64

	logger Logger
}

// NewYoloCoin creates a new token with the given minter identity
func NewYoloCoin(minter string) *YoloCoin {
	return NewYoloCoinWithLogger(minter, &DefaultLogger{})
}

// NewYoloCoinWithLogger creates a new token with a custom logger
func NewYoloCoinWithLogger(minter string, logger Logger) *YoloCoin {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	return &YoloCoin{
		name:       "YoloCoin",
		symbol:     "YOLO",
		decimals:   DefaultCoinDecimals,
		minter:     minter,
		balances:   make(map[string]uint64),
		allowances: make(map[string]map[string]uint64),
		logger:     logger,
	}
}

// Name returns the token name
func (c *YoloCoin) Name() string { return c.name }

// Symbol returns the token symbol
func (c *YoloCoin) Symbol() string { return c.symbol }

// Decimals returns the number of decimals the token reports
func (c *YoloCoin) Decimals() uint8 { return c.decimals }

// TotalSupply returns the current circulating supply
func (c *YoloCoin) TotalSupply() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.totalSupply
}

// BalanceOf returns the balance of the given account
func (c *YoloCoin) BalanceOf(account string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.balances[account]
}

// Allowance returns how much spender may move out of owner's account
func (c *YoloCoin) Allowance(owner, spender string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if grants, ok := c.allowances[owner]; ok {
		return grants[spender]
	}
	return 0
}

// Mint creates new tokens on the given account; minter only
func (c *YoloCoin) Mint(caller, account string, amount uint64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.minter {
		c.logger.Error("Mint rejected: caller=%s is not the minter", caller)
		return ErrUnauthorizedMinter
	}

	c.balances[account] += amount
	c.totalSupply += amount

	c.logger.Debug("Minted %d to %s, supply=%d", amount, account, c.totalSupply)
	return nil
}

// Burn destroys tokens held by the given account; minter only
func (c *YoloCoin) Burn(caller, account string, amount uint64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if caller != c.minter {
		c.logger.Error("Burn rejected: caller=%s is not the minter", caller)
		return ErrUnauthorizedMinter
	}
	if c.balances[account] < amount {
		return ErrInsufficientBalance.WithDetails(
			"burn %d exceeds balance %d of %s", amount, c.balances[account], account)
	}

	c.balances[account] -= amount
	c.totalSupply -= amount

	c.logger.Debug("Burned %d from %s, supply=%d", amount, account, c.totalSupply)
	return nil
}

// Transfer moves amount from one account to another
func (c *YoloCoin) Transfer(from, to string, amount uint64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateAccount(to); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transferLocked(from, to, amount)
}

// TransferFrom moves amount out of the from account on behalf of
// spender, consuming spender's allowance
func (c *YoloCoin) TransferFrom(spender, from, to string, amount uint64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateAccount(to); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	grants := c.allowances[from]
	if grants[spender] < amount {
		c.logger.Error("TransferFrom rejected: allowance %d < %d (spender=%s, from=%s)",
			grants[spender], amount, spender, from)
		return ErrInsufficientAllowance.WithDetails(
			"allowance %d is less than requested %d", grants[spender], amount)
	}

	if err := c.transferLocked(from, to, amount); err != nil {
		return err
	}

	grants[spender] -= amount
	return nil
}

// IncreaseAllowance grants spender an additional allowance on owner's account
func (c *YoloCoin) IncreaseAllowance(owner, spender string, amount uint64) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateAccount(spender); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.allowances[owner] == nil {
		c.allowances[owner] = make(map[string]uint64)
	}
	c.allowances[owner][spender] += amount

	c.logger.Debug("Allowance of %s for %s increased to %d",
		owner, spender, c.allowances[owner][spender])
	return nil
}

// transferLocked moves balance between accounts; callers hold c.mu
func (c *YoloCoin) transferLocked(from, to string, amount uint64) error {
	if c.balances[from] < amount {
		c.logger.Error("Transfer rejected: balance %d < %d (from=%s)",
			c.balances[from], amount, from)
		return ErrInsufficientBalance.WithDetails(
			"balance %d is less than requested %d", c.balances[from], amount)
	}

	c.balances[from] -= amount
	c.balances[to] += amount
	return nil
}
