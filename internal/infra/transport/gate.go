package transport

import "context"

// Gate admits one holder at a time. Waiters queue on the channel send and are
// admitted in arrival order.
type Gate struct {
	ch chan struct{}
}

func NewGate() *Gate {
	return &Gate{ch: make(chan struct{}, 1)}
}

func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) Release() {
	if g == nil {
		return
	}
	select {
	case <-g.ch:
	default:
	}
}
