package drawer

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/events"
	"github.com/dynatos/pos-terminal/internal/metrics"
)

type Backend interface {
	CurrentDrawer(ctx context.Context) (*domain.CashDrawer, error)
	OpenDrawer(ctx context.Context, openingAmount decimal.Decimal) (domain.CashDrawer, error)
	DrawerSummary(ctx context.Context, drawerID int64) (domain.DrawerSummary, error)
	CloseDrawer(ctx context.Context, drawerID int64) error
}

// Lifecycle tracks whether this terminal has an open cash drawer. The backend
// owns the drawer record; the lifecycle only re-reads it after each change.
type Lifecycle struct {
	backend   Backend
	admin     *Authorizer
	publisher events.Publisher

	op sync.Mutex // serializes open/refresh/close round trips

	mu     sync.RWMutex
	state  domain.DrawerState
	drawer *domain.CashDrawer
}

func NewLifecycle(backend Backend, admin *Authorizer, publisher events.Publisher) *Lifecycle {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Lifecycle{
		backend:   backend,
		admin:     admin,
		publisher: publisher,
		state:     domain.DrawerStateLoading,
	}
}

func (l *Lifecycle) State() domain.DrawerState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Drawer returns the open drawer, or nil unless the state is DRAWER_OPEN.
func (l *Lifecycle) Drawer() *domain.CashDrawer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state != domain.DrawerStateOpen || l.drawer == nil {
		return nil
	}
	d := *l.drawer
	return &d
}

// Refresh asks the backend for the current drawer. The state reads LOADING
// while the query is in flight; on failure the previous state is restored.
func (l *Lifecycle) Refresh(ctx context.Context) (domain.DrawerState, error) {
	l.op.Lock()
	defer l.op.Unlock()
	return l.refresh(ctx)
}

func (l *Lifecycle) refresh(ctx context.Context) (domain.DrawerState, error) {
	l.mu.Lock()
	prevState, prevDrawer := l.state, l.drawer
	if err := l.transition(domain.DrawerStateLoading); err != nil {
		l.mu.Unlock()
		return prevState, err
	}
	l.mu.Unlock()

	current, err := l.backend.CurrentDrawer(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.state, l.drawer = prevState, prevDrawer
		return l.state, fmt.Errorf("failed to query current drawer: %w", err)
	}

	if current != nil && current.Status == domain.DrawerStatusOpen {
		l.drawer = current
		return l.state, l.transition(domain.DrawerStateOpen)
	}
	l.drawer = nil
	return l.state, l.transition(domain.DrawerStateNone)
}

// transition must be called with mu held. LOADING to LOADING is a no-op so
// that the very first refresh can start from the initial state.
func (l *Lifecycle) transition(next domain.DrawerState) error {
	if l.state == next && next == domain.DrawerStateLoading {
		return nil
	}
	if !l.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", IllegalTransitionError, l.state, next)
	}
	l.state = next
	return nil
}

// Open validates the amount, has an admin confirm the operation, asks the
// backend to open a drawer and re-queries. Nothing is retried on failure and
// the state stays NO_DRAWER.
func (l *Lifecycle) Open(ctx context.Context, creds domain.Credentials, openingAmount decimal.Decimal) (*domain.CashDrawer, error) {
	if openingAmount.IsNegative() {
		return nil, ErrInvalidOpeningAmount
	}

	l.op.Lock()
	defer l.op.Unlock()

	switch l.State() {
	case domain.DrawerStateLoading:
		return nil, ErrStateLoading
	case domain.DrawerStateOpen:
		return nil, ErrDrawerAlreadyOpen
	}

	approver, err := l.admin.VerifyAdmin(ctx, creds)
	if err != nil {
		return nil, err
	}

	opened, err := l.backend.OpenDrawer(ctx, openingAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to open drawer: %w", err)
	}
	metrics.DrawerEvents.WithLabelValues("open").Inc()
	log.Printf("drawer %d opened with %s, approved by %s", opened.ID, openingAmount.StringFixed(2), approver.DisplayName)

	l.publish(ctx, events.Event{
		Type:        events.TypeDrawerOpened,
		AggregateID: strconv.FormatInt(opened.ID, 10),
		Payload:     opened,
	})

	if _, err := l.refresh(ctx); err != nil {
		return nil, fmt.Errorf("drawer opened but state refresh failed: %w", err)
	}
	return l.Drawer(), nil
}

func (l *Lifecycle) closed(ctx context.Context, summary domain.DrawerSummary) error {
	l.op.Lock()
	defer l.op.Unlock()

	metrics.DrawerEvents.WithLabelValues("close").Inc()
	l.publish(ctx, events.Event{
		Type:        events.TypeDrawerClosed,
		AggregateID: strconv.FormatInt(summary.DrawerID, 10),
		Payload:     summary,
	})

	if _, err := l.refresh(ctx); err != nil {
		return fmt.Errorf("drawer closed but state refresh failed: %w", err)
	}
	return nil
}

func (l *Lifecycle) publish(ctx context.Context, event events.Event) {
	if err := l.publisher.Publish(ctx, event); err != nil {
		log.Printf("failed to publish %s: %v", event.Type, err)
	}
}
