package rate

import (
	"context"

	"go.uber.org/ratelimit"
)

// Jitter spreads bursty background work over time. Loops that walk whole
// partitions (sweeps, queue replays) take one token per item so a large
// backlog does not monopolize the process.
type Jitter struct {
	ch    chan struct{}
	l     ratelimit.Limiter
	limit int
}

// NewJitter returns a limiter emitting up to limit tokens per second with a
// small burst headroom. The token channel closes once ctx is cancelled.
func NewJitter(ctx context.Context, limit int) *Jitter {
	if limit < 1 {
		limit = 1
	}
	burst := int(float64(limit) * 0.1)
	if burst < 1 {
		burst = 1
	}
	j := &Jitter{
		limit: limit,
		ch:    make(chan struct{}, burst),
		l:     ratelimit.New(limit),
	}
	go j.provider(ctx)
	return j
}

func (j *Jitter) provider(ctx context.Context) {
	defer close(j.ch)
	for {
		j.l.Take()
		select {
		case <-ctx.Done():
			return
		case j.ch <- struct{}{}:
		}
	}
}

// Take blocks until a token arrives. It returns immediately once the limiter
// has shut down.
func (j *Jitter) Take() {
	<-j.ch
}

func (j *Jitter) Chan() <-chan struct{} {
	return j.ch
}
