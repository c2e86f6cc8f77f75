package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raterudder/gukk/pkg/gukk"
	"github.com/raterudder/gukk/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPortal struct {
	mock.Mock
}

func (m *mockPortal) Login(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Accounts hands out copies so every refresh sees new values like the real
// client does.
func (m *mockPortal) Accounts(ctx context.Context) ([]*types.Account, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]*types.Account)
	var out []*types.Account
	for _, a := range accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out, args.Error(1)
}

func (m *mockPortal) UpdateAccountDetail(ctx context.Context, account *types.Account) (*types.Account, error) {
	args := m.Called(ctx, account)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return account, nil
}

func (m *mockPortal) Meters(ctx context.Context, account *types.Account) ([]*types.Meter, error) {
	args := m.Called(ctx, account)
	meters, _ := args.Get(0).([]*types.Meter)
	var out []*types.Meter
	for _, mt := range meters {
		cp := *mt
		cp.Account = account
		out = append(out, &cp)
	}
	return out, args.Error(1)
}

func (m *mockPortal) SendMeasure(ctx context.Context, meter *types.Meter, value int64) error {
	args := m.Called(ctx, meter, value)
	return args.Error(0)
}

func account(id string) *types.Account {
	return &types.Account{ID: id, CompanyID: "1", Number: "n" + id}
}

func accountID(id string) any {
	return mock.MatchedBy(func(a *types.Account) bool { return a.ID == id })
}

func setBalance(v string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		a := args.Get(1).(*types.Account)
		a.Balance = decimal.NewNullDecimal(decimal.RequireFromString(v))
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	meter := &types.Meter{ID: "555", Title: "ХВС", LastIndication: ptr(int64(123)), PushAllowed: true}

	t.Run("Success", func(t *testing.T) {
		m := &mockPortal{}
		m.On("Login", mock.Anything).Return(nil).Once()
		m.On("Accounts", mock.Anything).Return([]*types.Account{account("10"), account("20")}, nil)
		m.On("UpdateAccountDetail", mock.Anything, accountID("10")).Run(setBalance("1234.56")).Return(nil)
		m.On("Meters", mock.Anything, accountID("10")).Return([]*types.Meter{meter}, nil)

		p := New(m)
		p.SetAccounts(map[string]bool{"1_20": false}, true)
		require.NoError(t, p.Refresh(ctx))

		s := p.Snapshot()
		assert.Empty(t, s.LastError)
		assert.False(t, s.LastRefresh.IsZero())
		require.Len(t, s.Accounts, 1)
		assert.Equal(t, "1_10", s.Accounts[0].Code)
		assert.Equal(t, "1234.56", s.Accounts[0].Balance.Decimal.String())
		require.Len(t, s.Accounts[0].Meters, 1)
		assert.Equal(t, "555", s.Accounts[0].Meters[0].Code)
		assert.Nil(t, s.Accounts[0].Meters[0].Account)

		// already logged in
		require.NoError(t, p.Refresh(ctx))
		m.AssertExpectations(t)
		m.AssertNumberOfCalls(t, "Login", 1)
		m.AssertNotCalled(t, "Meters", mock.Anything, accountID("20"))
	})

	t.Run("Default Disabled", func(t *testing.T) {
		m := &mockPortal{}
		m.On("Login", mock.Anything).Return(nil)
		m.On("Accounts", mock.Anything).Return([]*types.Account{account("10"), account("20")}, nil)
		m.On("UpdateAccountDetail", mock.Anything, accountID("20")).Return(nil)
		m.On("Meters", mock.Anything, accountID("20")).Return([]*types.Meter{}, nil)

		p := New(m)
		p.SetAccounts(map[string]bool{"1_20": true}, false)
		require.NoError(t, p.Refresh(ctx))

		s := p.Snapshot()
		require.Len(t, s.Accounts, 1)
		assert.Equal(t, "1_20", s.Accounts[0].Code)
		assert.Empty(t, s.Accounts[0].Meters)
		m.AssertExpectations(t)
	})

	t.Run("Failed Parts Keep Previous Values", func(t *testing.T) {
		m := &mockPortal{}
		m.On("Login", mock.Anything).Return(nil)
		m.On("Accounts", mock.Anything).Return([]*types.Account{account("10")}, nil)
		m.On("UpdateAccountDetail", mock.Anything, accountID("10")).Run(setBalance("10")).Return(nil).Once()
		m.On("UpdateAccountDetail", mock.Anything, accountID("10")).Return(errors.New("boom")).Once()
		m.On("Meters", mock.Anything, accountID("10")).Return([]*types.Meter{meter}, nil).Once()
		m.On("Meters", mock.Anything, accountID("10")).Return(nil, errors.New("boom")).Once()

		p := New(m)
		require.NoError(t, p.Refresh(ctx))
		require.NoError(t, p.Refresh(ctx))

		s := p.Snapshot()
		require.Len(t, s.Accounts, 1)
		assert.Equal(t, "10", s.Accounts[0].Balance.Decimal.String())
		require.Len(t, s.Accounts[0].Meters, 1)
		assert.Equal(t, int64(123), *s.Accounts[0].Meters[0].LastIndication)

		// carried over meters point at the new account
		mt, err := p.meter("1_10", "555")
		require.NoError(t, err)
		p.mu.RLock()
		assert.Same(t, p.accounts["1_10"].account, mt.Account)
		p.mu.RUnlock()
		m.AssertExpectations(t)
	})

	t.Run("Dropped Accounts", func(t *testing.T) {
		m := &mockPortal{}
		m.On("Login", mock.Anything).Return(nil)
		m.On("Accounts", mock.Anything).Return([]*types.Account{account("10"), account("20")}, nil).Once()
		m.On("Accounts", mock.Anything).Return([]*types.Account{account("20")}, nil).Once()
		m.On("UpdateAccountDetail", mock.Anything, mock.Anything).Return(nil)
		m.On("Meters", mock.Anything, mock.Anything).Return([]*types.Meter{}, nil)

		p := New(m)
		require.NoError(t, p.Refresh(ctx))
		assert.Len(t, p.Snapshot().Accounts, 2)
		require.NoError(t, p.Refresh(ctx))
		s := p.Snapshot()
		require.Len(t, s.Accounts, 1)
		assert.Equal(t, "1_20", s.Accounts[0].Code)
	})

	t.Run("Login Failure", func(t *testing.T) {
		m := &mockPortal{}
		m.On("Login", mock.Anything).Return(&gukk.Error{Kind: gukk.ErrLoginError, Message: "bad"})

		p := New(m)
		err := p.Refresh(ctx)
		assert.ErrorIs(t, err, gukk.ErrLoginError)
		assert.Contains(t, p.Snapshot().LastError, "failed to login")
		m.AssertNotCalled(t, "Accounts", mock.Anything)
	})

	t.Run("Accounts Failure Logs In Again", func(t *testing.T) {
		m := &mockPortal{}
		m.On("Login", mock.Anything).Return(nil)
		m.On("Accounts", mock.Anything).Return(nil, errors.New("boom")).Once()
		m.On("Accounts", mock.Anything).Return([]*types.Account{}, nil).Once()

		p := New(m)
		assert.EqualError(t, p.Refresh(ctx), "failed to get accounts: boom")
		require.NoError(t, p.Refresh(ctx))
		assert.Empty(t, p.Snapshot().LastError)
		m.AssertNumberOfCalls(t, "Login", 2)
	})

	t.Run("Expired Session", func(t *testing.T) {
		m := &mockPortal{}
		m.On("Login", mock.Anything).Return(nil)
		m.On("Accounts", mock.Anything).Return(nil, &gukk.Error{Kind: gukk.ErrAccessDenied, Status: 401}).Once()
		m.On("Accounts", mock.Anything).Return([]*types.Account{}, nil).Once()

		p := New(m)
		require.NoError(t, p.Refresh(ctx))
		m.AssertNumberOfCalls(t, "Login", 2)
		m.AssertNumberOfCalls(t, "Accounts", 2)
	})

	t.Run("Canceled", func(t *testing.T) {
		m := &mockPortal{}
		m.On("Login", mock.Anything).Return(nil)
		m.On("Accounts", mock.Anything).Return([]*types.Account{account("10")}, nil)
		m.On("UpdateAccountDetail", mock.Anything, mock.Anything).Return(context.Canceled)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		p := New(m)
		assert.ErrorIs(t, p.Refresh(cctx), context.Canceled)
		assert.Empty(t, p.Snapshot().Accounts)
		m.AssertNotCalled(t, "Meters", mock.Anything, mock.Anything)
	})
}

func TestPushMeasure(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, allowed bool) (*Poller, *mockPortal) {
		m := &mockPortal{}
		m.On("Login", mock.Anything).Return(nil)
		m.On("Accounts", mock.Anything).Return([]*types.Account{account("10")}, nil)
		m.On("UpdateAccountDetail", mock.Anything, mock.Anything).Return(nil)
		m.On("Meters", mock.Anything, mock.Anything).Return([]*types.Meter{{ID: "555", PushAllowed: allowed}}, nil)
		p := New(m)
		require.NoError(t, p.Refresh(ctx))
		return p, m
	}

	t.Run("Success", func(t *testing.T) {
		p, m := setup(t, true)
		m.On("SendMeasure", mock.Anything, mock.MatchedBy(func(mt *types.Meter) bool {
			return mt.ID == "555" && mt.Account != nil && mt.Account.ID == "10"
		}), int64(124)).Return(nil)

		res, err := p.PushMeasure(ctx, "1_10", "555", 124)
		require.NoError(t, err)
		assert.Equal(t, PushResult{
			AccountCode: "1_10",
			MeterCode:   "555",
			Success:     true,
			Indication:  124,
			Comment:     "reading sent",
		}, res)
		m.AssertNumberOfCalls(t, "Accounts", 2)
	})

	t.Run("Unknown Account", func(t *testing.T) {
		p, m := setup(t, true)
		res, err := p.PushMeasure(ctx, "1_99", "555", 124)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, res.Success)
		assert.Contains(t, res.Comment, "account 1_99")
		m.AssertNotCalled(t, "SendMeasure", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unknown Meter", func(t *testing.T) {
		p, _ := setup(t, true)
		_, err := p.PushMeasure(ctx, "1_10", "999", 124)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Not Allowed", func(t *testing.T) {
		p, m := setup(t, false)
		res, err := p.PushMeasure(ctx, "1_10", "555", 124)
		assert.ErrorIs(t, err, gukk.ErrInvalidValue)
		assert.False(t, res.Success)
		m.AssertNotCalled(t, "SendMeasure", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Send Failure", func(t *testing.T) {
		p, m := setup(t, true)
		m.On("SendMeasure", mock.Anything, mock.Anything, int64(124)).
			Return(&gukk.Error{Kind: gukk.ErrResponse, Message: "failed to send reading"})

		res, err := p.PushMeasure(ctx, "1_10", "555", 124)
		assert.ErrorIs(t, err, gukk.ErrResponse)
		assert.False(t, res.Success)
		assert.Contains(t, res.Comment, "failed to send reading")
		// one retry after logging in again
		m.AssertNumberOfCalls(t, "SendMeasure", 2)
		m.AssertNumberOfCalls(t, "Accounts", 1)
	})
}

func TestRun(t *testing.T) {
	m := &mockPortal{}
	m.On("Login", mock.Anything).Return(nil)
	m.On("Accounts", mock.Anything).Return([]*types.Account{}, nil)

	p := New(m)
	p.SetInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return !p.Snapshot().LastRefresh.IsZero()
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
