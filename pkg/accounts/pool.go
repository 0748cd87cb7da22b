// Package accounts tracks the health of the Instagram logins used by
// credentialed strategies and hands them out for rotation.
package accounts

import (
	"math/rand/v2"
	"sync"
	"time"

	"mediagrab/pkg/logger"
)

const (
	DefaultFailureThreshold = 3
	DefaultBlockDuration    = time.Hour
)

// Credentials is a username/password pair handed to a strategy
type Credentials struct {
	Username string
	Password string
}

// Account is a login plus its health counters. Values returned by the
// pool are snapshots; mutate state through the pool only.
type Account struct {
	Username            string
	Password            string
	Blocked             bool
	BlockedUntil        *time.Time
	TotalRequests       int
	ConsecutiveFailures int
	LastUsed            *time.Time
}

// Credentials returns the login of the account
func (a *Account) Credentials() *Credentials {
	return &Credentials{Username: a.Username, Password: a.Password}
}

// available clears an expired block and reports availability
func (a *Account) available(now time.Time) bool {
	if a.Blocked && a.BlockedUntil != nil && !now.Before(*a.BlockedUntil) {
		a.Blocked = false
		a.BlockedUntil = nil
	}
	return !a.Blocked
}

func (a *Account) snapshot() *Account {
	cp := *a
	if a.BlockedUntil != nil {
		t := *a.BlockedUntil
		cp.BlockedUntil = &t
	}
	if a.LastUsed != nil {
		t := *a.LastUsed
		cp.LastUsed = &t
	}
	return &cp
}

// AccountStats is the public view of one account, without its password
type AccountStats struct {
	Username       string     `json:"username"`
	Blocked        bool       `json:"is_blocked"`
	BlockedUntil   *time.Time `json:"blocked_until"`
	TotalRequests  int        `json:"total_requests"`
	FailedRequests int        `json:"failed_requests"`
	LastUsed       *time.Time `json:"last_used"`
}

// Stats summarizes the pool
type Stats struct {
	TotalAccounts     int            `json:"total_accounts"`
	AvailableAccounts int            `json:"available_accounts"`
	BlockedAccounts   int            `json:"blocked_accounts"`
	TotalRequests     int            `json:"total_requests"`
	Accounts          []AccountStats `json:"accounts"`
}

// Option configures a Pool
type Option func(*Pool)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithFailureThreshold sets how many consecutive failures block an account
func WithFailureThreshold(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.threshold = n
		}
	}
}

// WithBlockDuration sets how long a blocked account stays out of rotation
func WithBlockDuration(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.blockFor = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithRandom replaces the random index source, mainly for tests
func WithRandom(intn func(n int) int) Option {
	return func(p *Pool) { p.intn = intn }
}

// WithBlockHook registers a callback fired when an account gets blocked
func WithBlockHook(fn func(username string, until time.Time)) Option {
	return func(p *Pool) { p.onBlock = fn }
}

// Pool is an ordered set of accounts guarded by a single mutex
type Pool struct {
	mu       sync.Mutex
	accounts []*Account

	threshold int
	blockFor  time.Duration
	now       func() time.Time
	intn      func(n int) int
	onBlock   func(username string, until time.Time)
	logger    logger.Logger
}

// NewPool creates a pool from credentials, dropping duplicate usernames
func NewPool(creds []Credentials, opts ...Option) *Pool {
	p := &Pool{
		threshold: DefaultFailureThreshold,
		blockFor:  DefaultBlockDuration,
		now:       time.Now,
		intn:      rand.IntN,
		logger:    logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	seen := make(map[string]bool, len(creds))
	for _, c := range creds {
		if c.Username == "" || seen[c.Username] {
			continue
		}
		seen[c.Username] = true
		p.accounts = append(p.accounts, &Account{Username: c.Username, Password: c.Password})
	}

	if len(p.accounts) == 0 {
		p.logger.Warn("No Instagram accounts configured, authenticated strategies disabled")
	} else {
		p.logger.WithField("accounts", len(p.accounts)).Info("Account pool initialized")
	}
	return p
}

// Len returns the number of accounts in the pool
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

func (p *Pool) availableLocked(exclude map[string]bool) []*Account {
	now := p.now()
	var out []*Account
	for _, a := range p.accounts {
		if a.available(now) && !exclude[a.Username] {
			out = append(out, a)
		}
	}
	return out
}

// SelectRandom picks a random available account, or nil when all are blocked
func (p *Pool) SelectRandom() *Account {
	return p.SelectRandomExcept(nil)
}

// SelectRandomExcept is SelectRandom skipping the given usernames
func (p *Pool) SelectRandomExcept(exclude map[string]bool) *Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := p.availableLocked(exclude)
	if len(candidates) == 0 {
		return nil
	}
	return candidates[p.intn(len(candidates))].snapshot()
}

// SelectLeastUsed picks the available account with the fewest requests.
// Ties go to the account that comes first in the pool.
func (p *Pool) SelectLeastUsed() *Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *Account
	for _, a := range p.availableLocked(nil) {
		if best == nil || a.TotalRequests < best.TotalRequests {
			best = a
		}
	}
	if best == nil {
		return nil
	}
	return best.snapshot()
}

func (p *Pool) findLocked(username string) *Account {
	for _, a := range p.accounts {
		if a.Username == username {
			return a
		}
	}
	return nil
}

// RecordSuccess counts a request and resets the failure streak
func (p *Pool) RecordSuccess(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a := p.findLocked(username)
	if a == nil {
		return
	}
	now := p.now()
	a.TotalRequests++
	a.ConsecutiveFailures = 0
	a.LastUsed = &now
}

// RecordFailure counts a failed request and blocks the account once the
// streak reaches the threshold. It reports whether this call blocked it.
func (p *Pool) RecordFailure(username string) bool {
	p.mu.Lock()

	a := p.findLocked(username)
	if a == nil {
		p.mu.Unlock()
		return false
	}
	now := p.now()
	a.TotalRequests++
	a.ConsecutiveFailures++
	a.LastUsed = &now

	if a.ConsecutiveFailures < p.threshold || a.Blocked {
		p.mu.Unlock()
		return false
	}

	until := now.Add(p.blockFor)
	a.Blocked = true
	a.BlockedUntil = &until
	failures := a.ConsecutiveFailures
	hook := p.onBlock
	p.mu.Unlock()

	logger.LogAccountQuarantined(p.logger, username, failures, until)
	if hook != nil {
		hook(username, until)
	}
	return true
}

// HasAnyAvailable reports whether at least one account can be selected
func (p *Pool) HasAnyAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.availableLocked(nil)) > 0
}

// AvailableCount returns how many accounts can currently be selected
func (p *Pool) AvailableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.availableLocked(nil))
}

// Stats returns a consistent snapshot of every account
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	s := Stats{
		TotalAccounts: len(p.accounts),
		Accounts:      make([]AccountStats, 0, len(p.accounts)),
	}
	for _, a := range p.accounts {
		if a.available(now) {
			s.AvailableAccounts++
		} else {
			s.BlockedAccounts++
		}
		s.TotalRequests += a.TotalRequests

		snap := a.snapshot()
		s.Accounts = append(s.Accounts, AccountStats{
			Username:       snap.Username,
			Blocked:        snap.Blocked,
			BlockedUntil:   snap.BlockedUntil,
			TotalRequests:  snap.TotalRequests,
			FailedRequests: snap.ConsecutiveFailures,
			LastUsed:       snap.LastUsed,
		})
	}
	return s
}
