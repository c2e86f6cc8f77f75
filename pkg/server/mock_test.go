package server

import (
	"context"

	"github.com/raterudder/gukk/pkg/poller"
	"github.com/stretchr/testify/mock"
)

type mockPoller struct {
	mock.Mock
}

func (m *mockPoller) Snapshot() poller.Snapshot {
	args := m.Called()
	if len(args) > 0 {
		return args.Get(0).(poller.Snapshot)
	}
	return poller.Snapshot{}
}

func (m *mockPoller) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockPoller) PushMeasure(ctx context.Context, accountCode, meterCode string, value int64) (poller.PushResult, error) {
	args := m.Called(ctx, accountCode, meterCode, value)
	return args.Get(0).(poller.PushResult), args.Error(1)
}
