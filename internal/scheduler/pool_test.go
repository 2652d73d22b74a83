package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumenarchive/internal/asset"
	"lumenarchive/internal/ledger"
	"lumenarchive/internal/storage"
	"lumenarchive/internal/tasks"
)

// blockingTask runs until its gate channel is closed or goCtx is
// cancelled, recording which outcome happened.
type blockingTask struct {
	taskType asset.TaskType
	gate     chan struct{}
	started  chan struct{}
	ran      *int32
	mu       *sync.Mutex
}

func (b blockingTask) Type() asset.TaskType           { return b.taskType }
func (b blockingTask) Dependencies() []asset.TaskType { return nil }
func (b blockingTask) Parameters(_ *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}
func (b blockingTask) OutputTemplate(_ string) asset.Output { return asset.DataOutput(json.RawMessage(`{}`)) }
func (b blockingTask) Run(goCtx context.Context, _ *tasks.Context, _ tasks.FileInfo, _ *asset.TaskRecord, _ *asset.TaskRunRecord) error {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.gate:
		b.mu.Lock()
		*b.ran++
		b.mu.Unlock()
		return nil
	case <-goCtx.Done():
		return goCtx.Err()
	}
}

func newTestPool(t *testing.T, cat tasks.Catalogue) *Pool {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	lg := ledger.New(store, zerolog.Nop())
	engCtx := &tasks.Context{Storage: store, Ledger: lg, Log: zerolog.Nop(), ChunkSize: 400}
	return New(cat, engCtx, zerolog.Nop(), 16)
}

func TestPoolRunsQueuedTaskToCompletion(t *testing.T) {
	gate := make(chan struct{})
	close(gate)
	started := make(chan struct{}, 1)
	var ran int32
	var mu sync.Mutex

	cat := tasks.NewCatalogue()
	cat.Register(blockingTask{taskType: "test.one", gate: gate, started: started, ran: &ran, mu: &mu})

	pool := newTestPool(t, cat)
	goCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(goCtx)

	notifications := pool.Notifications()
	pool.AddTask("asset-1", "/tmp/asset-1", "test.one", Normal)

	var got []Notification
	for len(got) < 2 {
		select {
		case n := <-notifications:
			got = append(got, n)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for notifications")
		}
	}
	assert.Equal(t, Started, got[0].Status)
	assert.Equal(t, Finished, got[1].Status)
}

func TestPoolCancelByFileStopsRunningTask(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	var ran int32
	var mu sync.Mutex

	cat := tasks.NewCatalogue()
	cat.Register(blockingTask{taskType: "test.one", gate: gate, started: started, ran: &ran, mu: &mu})

	pool := newTestPool(t, cat)
	goCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(goCtx)

	pool.AddTask("asset-1", "/tmp/asset-1", "test.one", Normal)
	<-started

	select {
	case n := <-pool.Notifications():
		assert.Equal(t, Started, n.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for start notification")
	}

	pool.CancelByFile("asset-1")

	select {
	case n := <-pool.Notifications():
		assert.Equal(t, Cancelled, n.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancellation notification")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(0), ran, "task body must not have reached its completion branch")
}

func TestPoolPreemptsLowerPriorityRunningTask(t *testing.T) {
	lowGate := make(chan struct{})
	lowStarted := make(chan struct{}, 1)
	highGate := make(chan struct{})
	close(highGate)
	var ran int32
	var mu sync.Mutex

	cat := tasks.NewCatalogue()
	cat.Register(blockingTask{taskType: "test.low", gate: lowGate, started: lowStarted, ran: &ran, mu: &mu})
	cat.Register(blockingTask{taskType: "test.high", gate: highGate, started: make(chan struct{}, 1), ran: &ran, mu: &mu})

	pool := newTestPool(t, cat)
	goCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(goCtx)

	pool.AddTask("asset-low", "/tmp/low", "test.low", Low)
	<-lowStarted

	pool.AddTask("asset-high", "/tmp/high", "test.high", High)

	var sawHighFinish bool
	deadline := time.After(2 * time.Second)
	for !sawHighFinish {
		select {
		case n := <-pool.Notifications():
			if n.FileIdentifier == "asset-high" && n.Status == Finished {
				sawHighFinish = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for high-priority task to finish")
		}
	}

	close(lowGate)
	deadline = time.After(2 * time.Second)
	for {
		select {
		case n := <-pool.Notifications():
			if n.FileIdentifier == "asset-low" && n.Status == Finished {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for preempted low-priority task to resume and finish")
		}
	}
}
