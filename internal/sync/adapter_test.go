package sync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu      sync.Mutex
	err     error
	nodes   []NodeRecord
	packets []PacketRecord
	calls   int
}

func (r *recordingStore) UpsertNode(_ context.Context, rec *NodeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.nodes = append(r.nodes, *rec)
	return nil
}

func (r *recordingStore) InsertPacket(_ context.Context, rec *PacketRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.packets = append(r.packets, *rec)
	return nil
}

func (r *recordingStore) Close() error { return nil }

func TestAdapterSyncNodeDelivers(t *testing.T) {
	store := &recordingStore{}
	a := NewAdapter(store, time.Second)

	name := "Alice"
	a.SyncNode(NodeRecord{Num: 200, LongName: &name, LastHeard: time.Now()})
	a.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.nodes, 1)
	assert.Equal(t, uint32(200), store.nodes[0].Num)
	require.NotNil(t, store.nodes[0].LongName)
	assert.Equal(t, "Alice", *store.nodes[0].LongName)
}

func TestAdapterSyncPacketDelivers(t *testing.T) {
	store := &recordingStore{}
	a := NewAdapter(store, time.Second)

	a.SyncPacket(PacketRecord{ID: uuid.New(), FromNode: 200, ToNode: 100, RxTime: time.Now()})
	a.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.packets, 1)
	assert.Equal(t, uint32(200), store.packets[0].FromNode)
}

// A permanently failing backend must never surface past the adapter: the
// call returns immediately and the failure ends at a log line.
func TestAdapterSwallowsFailures(t *testing.T) {
	store := &recordingStore{err: errors.New("backend unavailable")}
	a := NewAdapter(store, time.Second)

	a.SyncNode(NodeRecord{Num: 1})
	a.SyncPacket(PacketRecord{ID: uuid.New()})
	a.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 2, store.calls)
	assert.Empty(t, store.nodes)
	assert.Empty(t, store.packets)
}

func TestAdapterZeroTimeoutUsesDefault(t *testing.T) {
	a := NewAdapter(&recordingStore{}, 0)
	assert.Equal(t, defaultTimeout, a.timeout)
}

func TestAdapterWaitFlushesAllSubmissions(t *testing.T) {
	store := &recordingStore{}
	a := NewAdapter(store, time.Second)

	for i := 0; i < 20; i++ {
		a.SyncNode(NodeRecord{Num: uint32(i)})
	}
	a.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.nodes, 20)
}
