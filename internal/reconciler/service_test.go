package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"photo-intake-bot/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFolders []string

func (s staticFolders) Folders() []string { return s }

type fakeLedger struct {
	mu     sync.Mutex
	counts map[string]int
	swept  int
	ttl    time.Duration
}

func (f *fakeLedger) CountPhotos(folder string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.counts[folder]
	if !ok {
		return 0, errors.New("unreadable")
	}
	return n, nil
}

func (f *fakeLedger) SweepParts(olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttl = olderThan
	f.swept++
	return 2, nil
}

func TestReconcile(t *testing.T) {
	ledger := &fakeLedger{counts: map[string]int{"/a": 3, "/b": 4}}
	cfg := &config.StorageCfg{PartTTL: time.Hour, SweepInterval: time.Minute}
	svc := NewDefaultService(staticFolders{"/a", "/b", "/broken"}, ledger, cfg)

	res := svc.Reconcile(context.Background())
	assert.Equal(t, Result{PartsRemoved: 2, Photos: 7}, res)
	assert.Equal(t, time.Hour, ledger.ttl)
}

func TestStartStop(t *testing.T) {
	ledger := &fakeLedger{counts: map[string]int{}}
	cfg := &config.StorageCfg{PartTTL: time.Hour, SweepInterval: 10 * time.Millisecond}
	svc := NewDefaultService(staticFolders{}, ledger, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	assert.Eventually(t, func() bool {
		ledger.mu.Lock()
		defer ledger.mu.Unlock()
		return ledger.swept >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, svc.Stop(stopCtx))
}
