package drawer

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/api"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/events"
)

// MockBackend implements Backend for testing
type MockBackend struct {
	mu sync.Mutex

	Current    *domain.CashDrawer
	CurrentErr error
	OpenErr    error
	Summary    domain.DrawerSummary
	SummaryErr error
	CloseErr   error

	CurrentCalls int
	OpenCalls    int
	SummaryCalls int
	CloseCalls   int
	OpenedWith   decimal.Decimal
	ClosedID     int64

	// OnCurrent runs inside CurrentDrawer, while the lifecycle is LOADING
	OnCurrent func()
}

func (m *MockBackend) CurrentDrawer(context.Context) (*domain.CashDrawer, error) {
	m.mu.Lock()
	m.CurrentCalls++
	hook := m.OnCurrent
	current, err := m.Current, m.CurrentErr
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return current, err
}

func (m *MockBackend) OpenDrawer(_ context.Context, amount decimal.Decimal) (domain.CashDrawer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls++
	m.OpenedWith = amount
	if m.OpenErr != nil {
		return domain.CashDrawer{}, m.OpenErr
	}
	d := domain.CashDrawer{ID: 10, OpeningAmount: amount, Status: domain.DrawerStatusOpen}
	m.Current = &d
	return d, nil
}

func (m *MockBackend) DrawerSummary(_ context.Context, id int64) (domain.DrawerSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryCalls++
	if m.SummaryErr != nil {
		return domain.DrawerSummary{}, m.SummaryErr
	}
	s := m.Summary
	s.DrawerID = id
	return s, nil
}

func (m *MockBackend) CloseDrawer(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	if m.CloseErr != nil {
		return m.CloseErr
	}
	m.ClosedID = id
	m.Current = nil
	return nil
}

// MockAuthenticator implements Authenticator for testing
type MockAuthenticator struct {
	Role  domain.Role
	Err   error
	Calls int
}

func (m *MockAuthenticator) Login(_ context.Context, creds domain.Credentials) (api.LoginResult, error) {
	m.Calls++
	if m.Err != nil {
		return api.LoginResult{}, m.Err
	}
	return api.LoginResult{
		Token:   "token",
		Session: domain.Session{UserID: 1, DisplayName: creds.Username, Role: m.Role},
	}, nil
}

// MockPublisher records published events
type MockPublisher struct {
	Events []events.Event
	Err    error
}

func (m *MockPublisher) Publish(_ context.Context, e events.Event) error {
	m.Events = append(m.Events, e)
	return m.Err
}

var adminCreds = domain.Credentials{Username: "admin", Password: "secret"}
