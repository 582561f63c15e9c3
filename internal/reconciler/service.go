// Package reconciler periodically brings disk state and metrics back in line: it removes
// partial downloads abandoned by crashed pipelines and recounts the photos of active
// sessions from disk.
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"photo-intake-bot/internal/pkg/config"
	"photo-intake-bot/internal/pkg/metrics"

	"go.uber.org/atomic"
)

type Folders interface {
	Folders() []string
}

type Ledger interface {
	CountPhotos(folder string) (int, error)
	SweepParts(olderThan time.Duration) (int, error)
}

type Service interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
	Reconcile(ctx context.Context) Result
}

type Result struct {
	PartsRemoved int
	Photos       int64
}

type DefaultService struct {
	folders Folders
	ledger  Ledger
	cfg     *config.StorageCfg
	wg      *sync.WaitGroup
}

func NewDefaultService(folders Folders, ledger Ledger, cfg *config.StorageCfg) Service {
	return &DefaultService{
		folders: folders,
		ledger:  ledger,
		cfg:     cfg,
		wg:      &sync.WaitGroup{},
	}
}

func (d *DefaultService) Start(ctx context.Context) {
	d.startReconciliationLoop(ctx)
	slog.Info("Started reconciler service", "interval", d.cfg.SweepInterval)
}

func (d *DefaultService) Stop(ctx context.Context) error {
	stop := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(stop)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stop:
		return nil
	}
}

func (d *DefaultService) startReconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.SweepInterval)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.Reconcile(ctx)
			}
		}
	}()
}

func (d *DefaultService) Reconcile(ctx context.Context) Result {
	var result Result

	removed, err := d.ledger.SweepParts(d.cfg.PartTTL)
	if err != nil {
		slog.Error("Failed to sweep partial downloads", "error", err)
	}
	if removed > 0 {
		metrics.StalePartsRemoved.Add(float64(removed))
		slog.Info("Removed stale partial downloads", "count", removed)
	}
	result.PartsRemoved = removed

	folders := d.folders.Folders()
	total := atomic.NewInt64(0)
	wg := sync.WaitGroup{}
	sem := make(chan struct{}, 10)

	for _, folder := range folders {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(folder string) {
			defer func() {
				<-sem
				wg.Done()
			}()
			count, err := d.ledger.CountPhotos(folder)
			if err != nil {
				slog.Error("Failed to count photos", "error", err, "path", folder)
				return
			}
			total.Add(int64(count))
		}(folder)
	}
	wg.Wait()

	result.Photos = total.Load()
	metrics.ActiveSessions.Set(float64(len(folders)))
	metrics.AcceptedPhotos.Set(float64(result.Photos))
	return result
}
