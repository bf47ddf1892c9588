package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// Adapter submits sync operations as detached tasks. Submission never
// blocks the caller and no failure ever propagates past this boundary:
// every error ends at a log line. There is no retry queue.
type Adapter struct {
	store   Store
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAdapter creates an adapter over the given backend store. A zero
// timeout selects the default.
func NewAdapter(store Store, timeout time.Duration) *Adapter {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Adapter{
		store:   store,
		timeout: timeout,
	}
}

// SyncNode upserts a node projection, fire-and-forget.
func (a *Adapter) SyncNode(rec NodeRecord) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.store.UpsertNode(ctx, &rec); err != nil {
			log.Error().
				Err(err).
				Uint32("num", rec.Num).
				Msg("Node sync failed")
		}
	}()
}

// SyncPacket inserts a packet-log row, fire-and-forget.
func (a *Adapter) SyncPacket(rec PacketRecord) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.store.InsertPacket(ctx, &rec); err != nil {
			log.Error().
				Err(err).
				Uint32("from", rec.FromNode).
				Uint32("to", rec.ToNode).
				Msg("Packet sync failed")
		}
	}()
}

// Wait blocks until all in-flight operations have completed or failed.
// Shutdown lets them finish; they are never force-cancelled.
func (a *Adapter) Wait() {
	a.wg.Wait()
}
