// Package poller keeps the latest accounts and meters fetched from the portal.
// It owns the refresh cycle and serializes every call into the portal client.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/raterudder/gukk/pkg/gukk"
	"github.com/raterudder/gukk/pkg/log"
	"github.com/raterudder/gukk/pkg/types"
)

// ErrNotFound is returned when an account or meter code isn't known.
var ErrNotFound = errors.New("not found")

// Portal is the part of the portal client the poller needs.
type Portal interface {
	Login(ctx context.Context) error
	Accounts(ctx context.Context) ([]*types.Account, error)
	UpdateAccountDetail(ctx context.Context, account *types.Account) (*types.Account, error)
	Meters(ctx context.Context, account *types.Account) ([]*types.Meter, error)
	SendMeasure(ctx context.Context, meter *types.Meter, value int64) error
}

// Poller refreshes accounts and meters from the portal and keeps them keyed
// by their codes so records survive across refreshes.
type Poller struct {
	portal Portal

	interval        time.Duration
	accountFilter   map[string]bool
	accountsDefault bool

	// portalMu serializes calls into portal since the client isn't safe for
	// a login racing other calls
	portalMu sync.Mutex
	loggedIn bool

	mu          sync.RWMutex
	accounts    map[string]*accountState
	lastRefresh time.Time
	lastErr     error
}

type accountState struct {
	account *types.Account
	meters  map[string]*types.Meter
}

// New returns a poller over portal with every account enabled and a 12 hour
// interval.
func New(portal Portal) *Poller {
	return &Poller{
		portal:          portal,
		interval:        DefaultInterval,
		accountFilter:   map[string]bool{},
		accountsDefault: true,
		accounts:        map[string]*accountState{},
	}
}

// Interval returns how often Run refreshes.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

func (p *Poller) accountEnabled(code string) bool {
	if enabled, ok := p.accountFilter[code]; ok {
		return enabled
	}
	return p.accountsDefault
}

// Run refreshes immediately and then on every interval until ctx is done.
// Refresh errors are logged and don't stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			log.Ctx(ctx).ErrorContext(ctx, "refresh failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh fetches all enabled accounts with their details and meters. An
// account whose detail or meters fail keeps the values from the previous
// refresh. Accounts the portal no longer returns are dropped.
func (p *Poller) Refresh(ctx context.Context) error {
	p.portalMu.Lock()
	defer p.portalMu.Unlock()

	err := p.refresh(ctx)

	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	return err
}

func (p *Poller) refresh(ctx context.Context) error {
	log.Ctx(ctx).InfoContext(ctx, "refreshing portal data")

	if !p.loggedIn {
		if err := p.portal.Login(ctx); err != nil {
			return fmt.Errorf("failed to login: %w", err)
		}
		p.loggedIn = true
	}

	accounts, err := gukk.WithAutoAuth(ctx, p.portal, p.portal.Accounts)
	if err != nil {
		// force a fresh login next time in case the session is what broke
		p.loggedIn = false
		return fmt.Errorf("failed to get accounts: %w", err)
	}

	p.mu.RLock()
	prev := p.accounts
	p.mu.RUnlock()

	next := make(map[string]*accountState, len(accounts))
	for _, account := range accounts {
		code := account.Code()
		if !p.accountEnabled(code) {
			log.Ctx(ctx).DebugContext(ctx, "skipping disabled account", slog.String("account", code))
			continue
		}
		old := prev[code]

		_, err := gukk.WithAutoAuth(ctx, p.portal, func(ctx context.Context) (*types.Account, error) {
			return p.portal.UpdateAccountDetail(ctx, account)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Ctx(ctx).WarnContext(ctx, "failed to get account detail", slog.String("account", code), slog.Any("error", err))
			if old != nil {
				account.CarryDetail(old.account)
			}
		}

		state := &accountState{
			account: account,
			meters:  map[string]*types.Meter{},
		}
		meters, err := gukk.WithAutoAuth(ctx, p.portal, func(ctx context.Context) ([]*types.Meter, error) {
			return p.portal.Meters(ctx, account)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Ctx(ctx).WarnContext(ctx, "failed to get meters", slog.String("account", code), slog.Any("error", err))
			if old != nil {
				for mc, m := range old.meters {
					cp := *m
					cp.Account = account
					state.meters[mc] = &cp
				}
			}
		}
		for _, m := range meters {
			state.meters[m.Code()] = m
		}
		next[code] = state
	}

	p.mu.Lock()
	p.accounts = next
	p.lastRefresh = time.Now()
	p.mu.Unlock()

	log.Ctx(ctx).InfoContext(ctx, "refreshed portal data", slog.Int("accounts", len(next)))
	return nil
}

// MeterSnapshot is a meter as of the last refresh.
type MeterSnapshot struct {
	Code string `json:"code"`
	types.Meter
}

// AccountSnapshot is an account and its meters as of the last refresh.
type AccountSnapshot struct {
	Code string `json:"code"`
	types.Account
	Meters []MeterSnapshot `json:"meters"`
}

// Snapshot is a copy of everything the poller knows.
type Snapshot struct {
	Accounts    []AccountSnapshot `json:"accounts"`
	LastRefresh time.Time         `json:"lastRefresh"`
	LastError   string            `json:"lastError,omitempty"`
}

// Snapshot returns a copy of the current state sorted by code.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		Accounts:    make([]AccountSnapshot, 0, len(p.accounts)),
		LastRefresh: p.lastRefresh,
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	for code, st := range p.accounts {
		as := AccountSnapshot{
			Code:    code,
			Account: *st.account,
			Meters:  make([]MeterSnapshot, 0, len(st.meters)),
		}
		for mc, m := range st.meters {
			ms := MeterSnapshot{Code: mc, Meter: *m}
			ms.Meter.Account = nil
			as.Meters = append(as.Meters, ms)
		}
		sort.Slice(as.Meters, func(i, j int) bool { return as.Meters[i].Code < as.Meters[j].Code })
		s.Accounts = append(s.Accounts, as)
	}
	sort.Slice(s.Accounts, func(i, j int) bool { return s.Accounts[i].Code < s.Accounts[j].Code })
	return s
}

func (p *Poller) meter(accountCode, meterCode string) (*types.Meter, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st, ok := p.accounts[accountCode]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountCode, ErrNotFound)
	}
	m, ok := st.meters[meterCode]
	if !ok {
		return nil, fmt.Errorf("meter %s: %w", meterCode, ErrNotFound)
	}
	return m, nil
}

// PushResult describes the outcome of a pushed reading.
type PushResult struct {
	AccountCode string `json:"accountCode"`
	MeterCode   string `json:"meterCode"`
	Success     bool   `json:"success"`
	Indication  int64  `json:"indication"`
	Comment     string `json:"comment"`
}

// PushMeasure sends a reading for a known meter and refreshes afterwards so
// the new reading shows up. The returned result is filled in on failure too.
func (p *Poller) PushMeasure(ctx context.Context, accountCode, meterCode string, value int64) (PushResult, error) {
	res := PushResult{
		AccountCode: accountCode,
		MeterCode:   meterCode,
		Indication:  value,
	}

	m, err := p.meter(accountCode, meterCode)
	if err != nil {
		res.Comment = err.Error()
		return res, err
	}
	if !m.PushAllowed {
		err := &gukk.Error{Kind: gukk.ErrInvalidValue, Message: "the portal isn't accepting readings right now"}
		res.Comment = err.Error()
		return res, err
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"pushing meter reading",
		slog.String("account", accountCode),
		slog.String("meter", meterCode),
		slog.Int64("value", value),
	)

	p.portalMu.Lock()
	err = gukk.DoWithAutoAuth(ctx, p.portal, func(ctx context.Context) error {
		return p.portal.SendMeasure(ctx, m, value)
	})
	p.portalMu.Unlock()
	if err != nil {
		res.Comment = err.Error()
		return res, err
	}

	res.Success = true
	res.Comment = "reading sent"

	if err := p.Refresh(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to refresh after push", slog.Any("error", err))
	}
	return res, nil
}
