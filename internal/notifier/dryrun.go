package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DryRunNotifier prints alerts instead of sending them
type DryRunNotifier struct {
	w io.Writer
}

// NewDryRunNotifier creates a dry-run notifier writing to w, or stdout when w is nil
func NewDryRunNotifier(w io.Writer) *DryRunNotifier {
	if w == nil {
		w = os.Stdout
	}
	return &DryRunNotifier{w: w}
}

// Notify prints the alert that would be sent
func (n *DryRunNotifier) Notify(_ context.Context, alert Alert) error {
	fmt.Fprintf(n.w, "--- Alert (%s) ---\n", alert.Severity)
	fmt.Fprintln(n.w, alert.subject())
	fmt.Fprintln(n.w, alert.Message)
	fmt.Fprintln(n.w)
	return nil
}
