package drawer

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dynatos/pos-terminal/internal/domain"
)

// CloseFlow runs the end-of-shift reconciliation: admin check, summary,
// explicit confirmation, close, then the lifecycle re-queries.
type CloseFlow struct {
	lifecycle *Lifecycle

	mu      sync.Mutex
	summary *domain.DrawerSummary
}

func NewCloseFlow(lifecycle *Lifecycle) *CloseFlow {
	return &CloseFlow{lifecycle: lifecycle}
}

// Authorize checks the admin credentials and fetches the summary of the open
// drawer. Any failure aborts the attempt; no close request is sent.
func (f *CloseFlow) Authorize(ctx context.Context, creds domain.Credentials) (domain.DrawerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary = nil

	if f.lifecycle.State() != domain.DrawerStateOpen {
		return domain.DrawerSummary{}, ErrNoOpenDrawer
	}
	open := f.lifecycle.Drawer()
	if open == nil {
		return domain.DrawerSummary{}, ErrNoOpenDrawer
	}

	if _, err := f.lifecycle.admin.VerifyAdmin(ctx, creds); err != nil {
		return domain.DrawerSummary{}, err
	}

	summary, err := f.lifecycle.backend.DrawerSummary(ctx, open.ID)
	if err != nil {
		return domain.DrawerSummary{}, fmt.Errorf("failed to fetch drawer summary: %w", err)
	}
	summary.DrawerID = open.ID
	f.summary = &summary
	return summary, nil
}

// Confirm commits the close. When the backend rejects it the summary is kept
// so the operator can retry without authorizing again.
func (f *CloseFlow) Confirm(ctx context.Context) (domain.DrawerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.summary == nil {
		return domain.DrawerSummary{}, ErrNotAuthorized
	}
	summary := *f.summary

	if err := f.lifecycle.backend.CloseDrawer(ctx, summary.DrawerID); err != nil {
		log.Printf("close of drawer %d failed, summary kept for retry: %v", summary.DrawerID, err)
		return summary, fmt.Errorf("failed to close drawer: %w", err)
	}
	f.summary = nil

	if err := f.lifecycle.closed(ctx, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// Cancel abandons the flow. It never talks to the backend.
func (f *CloseFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary = nil
}

func (f *CloseFlow) Summary() (domain.DrawerSummary, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summary == nil {
		return domain.DrawerSummary{}, false
	}
	return *f.summary, true
}
