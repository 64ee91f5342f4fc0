package control

import (
	"context"
	"errors"
	"fmt"

	"pagelens-mcp-server/internal/dialog"
)

// ClassifyActionError rewrites an action timeout when a native dialog is
// known to be pending: the dialog, not the page, is the likely cause, and the
// error says how to unblock. Non-timeout errors pass through unchanged.
func ClassifyActionError(err error, pending *dialog.PendingDialog) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if pending == nil {
		return fmt.Errorf("action timed out: %w", err)
	}
	return fmt.Errorf("action timed out: a %s dialog (%q) is blocking the page; resolve it with handle-dialog", pending.Type, pending.Message)
}
