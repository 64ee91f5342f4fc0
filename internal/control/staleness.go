package control

import (
	"fmt"
	"sync"
)

// StalenessGuard tracks, per tab, the identifier of the last snapshot issued.
// Mutating actions present the identifier they were computed against; a
// mismatch means the agent is acting on an outdated view and the action is
// rejected before touching the page.
type StalenessGuard struct {
	mu     sync.Mutex
	issued map[string]string
}

// NewStalenessGuard builds an empty guard.
func NewStalenessGuard() *StalenessGuard {
	return &StalenessGuard{issued: make(map[string]string)}
}

// Issued records the snapshot identifier just handed out for a tab.
func (g *StalenessGuard) Issued(tabID, snapshotID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued[tabID] = snapshotID
}

// Check verifies a presented snapshot identifier against the last issued one.
// A tab with no issued snapshot passes: the first action on a tab cannot be
// stale. The rejection names both identifiers so the caller can tell which
// snapshot it should have used.
func (g *StalenessGuard) Check(tabID, presented string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	current, has := g.issued[tabID]
	if !has || current == "" {
		return nil
	}
	if presented != current {
		return fmt.Errorf("stale snapshot: action was computed against snapshot %s but the current snapshot is %s; take a new snapshot and retry", presented, current)
	}
	return nil
}

// Forget drops a tab's entry, on navigation or tab close.
func (g *StalenessGuard) Forget(tabID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.issued, tabID)
}
