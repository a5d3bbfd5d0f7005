package compose

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"
)

// DefaultPreviewDelay is how long a preview request waits for a newer one.
const DefaultPreviewDelay = 30 * time.Millisecond

// ErrSuperseded is returned to a preview request that was replaced by a newer
// request before its delay elapsed.
var ErrSuperseded = errors.New("preview superseded by a newer request")

// Previewer debounces live-preview renders so that only the latest of a burst
// of requests does any work.
//
// Every call schedules its render after a short delay and cancels whatever
// call was still waiting. A render that has already started is never
// interrupted; Compose holds no shared state, so an overlapping render is
// harmless and its result is simply the caller's to discard.
//
// A Previewer is safe for concurrent use.
type Previewer struct {
	delay time.Duration

	mu      sync.Mutex
	pending chan struct{}
}

// NewPreviewer creates a Previewer. A non-positive delay uses DefaultPreviewDelay.
func NewPreviewer(delay time.Duration) *Previewer {
	if delay <= 0 {
		delay = DefaultPreviewDelay
	}
	return &Previewer{delay: delay}
}

// Preview composes images once the debounce delay passes without a newer call.
func (p *Previewer) Preview(ctx context.Context, images []image.Image, mode Mode, opts Options) (*Result, error) {
	return p.Do(ctx, func() (*Result, error) {
		return Compose(images, mode, opts)
	})
}

// Do runs render after the debounce delay. It returns ErrSuperseded if another
// call arrives first, or ctx.Err() if ctx ends while waiting.
func (p *Previewer) Do(ctx context.Context, render func() (*Result, error)) (*Result, error) {
	superseded := make(chan struct{})

	p.mu.Lock()
	if p.pending != nil {
		close(p.pending)
	}
	p.pending = superseded
	p.mu.Unlock()

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-superseded:
		return nil, ErrSuperseded
	case <-ctx.Done():
		p.release(superseded)
		return nil, ctx.Err()
	case <-timer.C:
	}

	p.release(superseded)
	return render()
}

// release forgets ch if it is still the pending request.
func (p *Previewer) release(ch chan struct{}) {
	p.mu.Lock()
	if p.pending == ch {
		p.pending = nil
	}
	p.mu.Unlock()
}
