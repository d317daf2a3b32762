package activitylog

import (
	"context"
	"sync"
)

type captureKey struct{}

// Capture holds entries back from the sink and the alerter. Dry runs such as plan
// previews write through a captured context and decide later what to keep.
type Capture struct {
	mu      sync.Mutex
	entries []Entry
}

// WithCapture returns a context under which every entry written by any Logger is
// collected by the returned Capture instead of being persisted or alerted.
func WithCapture(ctx context.Context) (context.Context, *Capture) {
	c := &Capture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

// Entries returns the entries held back so far.
func (c *Capture) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Capture) add(entry Entry) {
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
}

func captured(ctx context.Context) *Capture {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(captureKey{}).(*Capture)
	return c
}
