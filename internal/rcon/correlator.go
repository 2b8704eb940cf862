package rcon

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/danmuck/rconctl/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// Correlator runs the background reader for one connection and matches the
// answers it decodes to waiting requests.
type Correlator struct {
	store   *PendingStore
	limits  frame.Limits
	metrics *Metrics

	running atomic.Bool
	started atomic.Bool
	done    chan struct{}
}

func NewCorrelator(limits frame.Limits, metrics *Metrics) *Correlator {
	return &Correlator{
		store:   NewPendingStore(metrics),
		limits:  limits,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Start launches the reader loop on r. A Correlator reads from one stream only.
func (c *Correlator) Start(r io.Reader) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrCorrelatorStarted
	}
	c.running.Store(true)
	go c.readLoop(r)
	return nil
}

// Stop clears the continuation flag. A read already blocked on the stream only
// returns once the stream is closed.
func (c *Correlator) Stop() {
	c.running.Store(false)
}

// Done is closed when the reader loop has exited.
func (c *Correlator) Done() <-chan struct{} {
	return c.done
}

// Halted reports whether the reader loop has exited.
func (c *Correlator) Halted() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Correlator) Store() *PendingStore {
	return c.store
}

func (c *Correlator) readLoop(r io.Reader) {
	defer close(c.done)
	for c.running.Load() {
		f, err := frame.ReadFrame(r, c.limits)
		if err != nil {
			log.Debug().Msgf("rcon.Correlator reader stopped err=%v", err)
			return
		}
		if !c.running.Load() {
			return
		}
		a := answerFromFrame(f)
		c.metrics.frameReceived(a.Success)
		c.store.Put(a)
	}
}

// Claim removes and merges every stored frame for id.
func (c *Correlator) Claim(id int32) Answer {
	return c.store.Claim(id)
}

// WaitFor blocks until an answer for id is stored, timeout elapses or ctx ends.
// Expiry yields EmptyAnswer. A reader that dies mid-wait is not reported; the
// wait simply runs out.
func (c *Correlator) WaitFor(ctx context.Context, id int32, timeout time.Duration) Answer {
	wake, release := c.store.watch(id)
	defer release()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if a := c.store.Claim(id); !a.IsEmpty() {
			return a
		}
		select {
		case <-wake:
		case <-timer.C:
			return c.store.Claim(id)
		case <-ctx.Done():
			return EmptyAnswer
		}
	}
}
