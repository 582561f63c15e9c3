// Package session drives an order intake conversation: order resolution, photo intake,
// review and dispatch. The folder listing is the only source of the uploaded count.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"photo-intake-bot/internal/file"
	"photo-intake-bot/internal/inspect"
	"photo-intake-bot/internal/order"
	"photo-intake-bot/internal/pkg/metrics"
	"photo-intake-bot/internal/pkg/model"

	"github.com/google/uuid"
)

const BlockSize = 10

type Inspector interface {
	Normalize(path string) (string, error)
	Check(path string) (inspect.Report, error)
}

type Notifier interface {
	Notify(ctx context.Context, dispatch model.Dispatch) error
}

type Machine struct {
	store     *Store
	lookup    order.Lookup
	files     file.Service
	inspector Inspector
	notifier  Notifier
	journal   order.Journal
}

func NewMachine(store *Store, lookup order.Lookup, files file.Service, inspector Inspector, notifier Notifier, journal order.Journal) *Machine {
	if journal == nil {
		journal = order.NopJournal{}
	}
	return &Machine{
		store:     store,
		lookup:    lookup,
		files:     files,
		inspector: inspector,
		notifier:  notifier,
		journal:   journal,
	}
}

func (m *Machine) Snapshot(userID int64) Session {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.clone()
}

// Start puts the conversation into order number entry. Order data of an unfinished
// session is dropped, its folder stays on disk so the order can be resumed.
func (m *Machine) Start(userID int64) Session {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	release(e)
	e.s.State = StateAwaitingOrderNumber
	return e.s.clone()
}

func (m *Machine) SubmitOrderNumber(ctx context.Context, userID int64, text string) (*Opened, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s.State != StateAwaitingOrderNumber {
		return nil, ErrUnexpectedInput
	}

	res, err := m.lookup.Lookup(ctx, text)
	if err != nil {
		slog.Warn("Order lookup failed", "error", err, "user", userID, "input", text)
		return nil, ErrOrderUnavailable
	}

	folder, err := m.files.SafePath(res.Path)
	if err != nil {
		slog.Error("Order path rejected", "error", err, "order", res.OrderNumber, "path", res.Path)
		metrics.LookupsTotal.WithLabelValues("path_rejected").Inc()
		return nil, ErrOrderUnavailable
	}
	if err := m.files.CreateFolder(folder); err != nil {
		slog.Error("Failed to create order folder", "error", err, "order", res.OrderNumber, "path", folder)
		return nil, ErrOrderUnavailable
	}

	count, err := m.files.CountPhotos(folder)
	if err != nil {
		slog.Error("Failed to count photos", "error", err, "order", res.OrderNumber, "path", folder)
		return nil, ErrOrderUnavailable
	}

	bind(e)
	e.s.OrderNumber = res.OrderNumber
	e.s.StoragePath = folder
	e.s.RequiredCount = res.Quantity
	e.s.State = StateAwaitingPhotos
	e.s.Editing = false
	e.s.Pending = nil

	metrics.SessionsTotal.WithLabelValues("opened").Inc()
	m.record(ctx, e, model.EventStarted, count)
	slog.Info("Order session opened", "user", userID, "order", res.OrderNumber, "uploaded", count, "required", res.Quantity)

	opened := &Opened{
		OrderNumber: res.OrderNumber,
		Resumed:     count > 0,
	}
	if opened.PreviousDispatches, err = m.journal.Dispatches(ctx, res.OrderNumber); err != nil {
		opened.PreviousDispatches = 0
	}

	if count >= e.s.RequiredCount {
		review, err := m.complete(ctx, e, count)
		if err != nil {
			return nil, err
		}
		opened.Review = review
	}
	opened.Progress = m.progress(e, count)
	return opened, nil
}

// SubmitPhoto intercepts lossy images unless the user opted out, everything else goes
// straight through the accept pipeline.
func (m *Machine) SubmitPhoto(ctx context.Context, userID int64, up Upload) (*PhotoResult, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.State.HasOrder() {
		return nil, ErrUnexpectedInput
	}
	if up.ID == "" {
		up.ID = uuid.NewString()
	}

	if up.Lossy && !e.s.SuppressQualityWarnings {
		e.s.Pending = append(e.s.Pending, up)
		metrics.PhotosTotal.WithLabelValues(OutcomeIntercepted.String()).Inc()
		slog.Info("Lossy upload intercepted", "upload_id", up.ID, "order", e.s.OrderNumber, "pending", len(e.s.Pending))

		count, err := m.files.CountPhotos(e.s.StoragePath)
		if err != nil {
			return nil, err
		}
		return &PhotoResult{
			Progress: m.progress(e, count),
			Outcome:  OutcomeIntercepted,
			UploadID: up.ID,
			Pending:  len(e.s.Pending),
		}, nil
	}

	return m.accept(ctx, e, up)
}

// ConfirmPending sends every intercepted upload through the accept pipeline.
func (m *Machine) ConfirmPending(ctx context.Context, userID int64) ([]*PhotoResult, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	return m.flushPending(ctx, e)
}

// SuppressWarnings stops interception for the rest of the session and accepts whatever
// is pending.
func (m *Machine) SuppressWarnings(ctx context.Context, userID int64) ([]*PhotoResult, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.State.HasOrder() {
		return nil, ErrUnexpectedInput
	}
	e.s.SuppressQualityWarnings = true
	if len(e.s.Pending) == 0 {
		return nil, nil
	}
	return m.flushPending(ctx, e)
}

// DiscardPending drops intercepted uploads and returns how many were dropped.
func (m *Machine) DiscardPending(userID int64) (int, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.State.HasOrder() {
		return 0, ErrUnexpectedInput
	}
	n := len(e.s.Pending)
	e.s.Pending = nil
	return n, nil
}

func (m *Machine) flushPending(ctx context.Context, e *entry) ([]*PhotoResult, error) {
	if !e.s.State.HasOrder() {
		return nil, ErrUnexpectedInput
	}
	if len(e.s.Pending) == 0 {
		return nil, ErrNothingPending
	}

	pending := e.s.Pending
	e.s.Pending = nil

	results := make([]*PhotoResult, 0, len(pending))
	for _, up := range pending {
		res, err := m.accept(ctx, e, up)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// accept runs download, normalize, inspection, duplicate search and recount. The caller
// holds the entry lock for the whole pipeline.
func (m *Machine) accept(ctx context.Context, e *entry, up Upload) (*PhotoResult, error) {
	started := time.Now()
	defer func() { metrics.PipelineDuration.Observe(time.Since(started).Seconds()) }()

	logger := slog.With("upload_id", up.ID, "order", e.s.OrderNumber, "user", e.s.UserID)
	folder := e.s.StoragePath

	reject := func(reason error) (*PhotoResult, error) {
		metrics.PhotosTotal.WithLabelValues(OutcomeRejected.String()).Inc()
		count, err := m.files.CountPhotos(folder)
		if err != nil {
			return nil, err
		}
		return &PhotoResult{
			Progress: m.progress(e, count),
			Outcome:  OutcomeRejected,
			UploadID: up.ID,
			Reason:   reason,
		}, nil
	}

	raw, err := m.files.SavePhoto(ctx, folder, file.RequestFile{
		Name:   up.Name,
		Size:   up.Size,
		FileID: up.FileID,
	})
	if err != nil {
		logger.Error("Failed to download photo", "error", err)
		return reject(err)
	}

	path, err := m.inspector.Normalize(raw)
	if err != nil {
		logger.Warn("Failed to normalize photo", "error", err, "path", raw)
		m.discard(logger, raw)
		return reject(err)
	}

	report, err := m.inspector.Check(path)
	if err != nil {
		logger.Warn("Failed to inspect photo", "error", err, "path", path)
		m.discard(logger, path)
		return reject(err)
	}

	dups, err := m.files.FindDuplicates(ctx, folder, path)
	if err != nil {
		logger.Warn("Duplicate search failed", "error", err)
	}
	report.Flags.DuplicateOf = dups
	countWarnings(report.Flags)

	count, err := m.files.CountPhotos(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to count photos: %w", err)
	}

	metrics.PhotosTotal.WithLabelValues(OutcomeAccepted.String()).Inc()
	logger.Info("Photo accepted", "path", path, "uploaded", count, "required", e.s.RequiredCount,
		"aspect", report.AspectRatio, "blur", report.BlurScore, "duplicates", len(dups))

	res := &PhotoResult{
		Outcome:  OutcomeAccepted,
		UploadID: up.ID,
		Name:     filepath.Base(path),
		Report:   report,
	}

	if e.s.State == StateAwaitingPhotos && count >= e.s.RequiredCount {
		review, err := m.complete(ctx, e, count)
		if err != nil {
			return nil, err
		}
		res.Completed = true
		res.Review = review
	}
	res.Progress = m.progress(e, count)
	return res, nil
}

func (m *Machine) discard(logger *slog.Logger, path string) {
	if _, err := m.files.DeletePhoto(path); err != nil {
		logger.Error("Failed to remove rejected upload", "error", err, "path", path)
	}
}

// complete moves the entry to Complete and runs the final review over every photo.
func (m *Machine) complete(ctx context.Context, e *entry, count int) (*Review, error) {
	e.s.State = StateComplete
	e.s.Editing = false
	metrics.SessionsTotal.WithLabelValues("completed").Inc()
	m.record(ctx, e, model.EventCompleted, count)

	review, err := m.review(ctx, e.s.StoragePath, 0, -1)
	if err != nil {
		return nil, err
	}
	return review, nil
}

// RetractLast removes the most recently uploaded photo.
func (m *Machine) RetractLast(ctx context.Context, userID int64) (*Removal, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.State.HasOrder() {
		return nil, ErrUnexpectedInput
	}
	photos, err := m.files.ListPhotos(e.s.StoragePath)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return m.removal(e, "", false)
	}
	return m.remove(e, photos[len(photos)-1])
}

// DeletePhoto removes the photo whose stored name carries key. Indexes shift after every
// deletion, keys do not. A key that is no longer on disk is treated as already deleted.
func (m *Machine) DeletePhoto(ctx context.Context, userID int64, key string) (*Removal, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.State.HasOrder() {
		return nil, ErrUnexpectedInput
	}
	photos, err := m.files.ListPhotos(e.s.StoragePath)
	if err != nil {
		return nil, err
	}
	if key != "" {
		for _, photo := range photos {
			if photo.Key == key {
				return m.remove(e, photo)
			}
		}
	}
	return m.removal(e, "", false)
}

func (m *Machine) remove(e *entry, photo file.Photo) (*Removal, error) {
	removed, err := m.files.DeletePhoto(photo.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to delete photo: %w", err)
	}
	if removed {
		metrics.PhotosTotal.WithLabelValues("deleted").Inc()
		slog.Info("Photo deleted", "order", e.s.OrderNumber, "name", photo.Name)
	}
	return m.removal(e, file.OriginalName(photo.Name), removed)
}

func (m *Machine) removal(e *entry, name string, removed bool) (*Removal, error) {
	count, err := m.files.CountPhotos(e.s.StoragePath)
	if err != nil {
		return nil, err
	}
	if e.s.State == StateComplete && count < e.s.RequiredCount {
		e.s.State = StateAwaitingPhotos
	}
	return &Removal{
		Progress: m.progress(e, count),
		Name:     name,
		Removed:  removed,
	}, nil
}

// Review enters editing mode and reports on one block of photos.
func (m *Machine) Review(ctx context.Context, userID int64, block int) (*BlockReview, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.State.HasOrder() {
		return nil, ErrUnexpectedInput
	}

	photos, err := m.files.ListPhotos(e.s.StoragePath)
	if err != nil {
		return nil, err
	}
	blocks := layout(len(photos))
	if len(blocks) == 0 {
		e.s.Editing = true
		return &BlockReview{Progress: m.progress(e, 0)}, nil
	}
	block = min(max(block, 0), len(blocks)-1)
	b := blocks[block]

	review, err := m.review(ctx, e.s.StoragePath, b.First-1, b.Last)
	if err != nil {
		return nil, err
	}

	e.s.Editing = true
	return &BlockReview{
		Progress: m.progress(e, len(photos)),
		Block:    b,
		Blocks:   blocks,
		Photos:   review.Photos,
	}, nil
}

func (m *Machine) Blocks(ctx context.Context, userID int64) ([]Block, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.State.HasOrder() {
		return nil, ErrUnexpectedInput
	}
	count, err := m.files.CountPhotos(e.s.StoragePath)
	if err != nil {
		return nil, err
	}
	return layout(count), nil
}

// ResumeUploading leaves editing mode.
func (m *Machine) ResumeUploading(ctx context.Context, userID int64) (*Progress, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.State.HasOrder() {
		return nil, ErrUnexpectedInput
	}
	e.s.Editing = false
	count, err := m.files.CountPhotos(e.s.StoragePath)
	if err != nil {
		return nil, err
	}
	p := m.progress(e, count)
	return &p, nil
}

// Cancel drops the session and removes its folder. Removal failures are only logged.
func (m *Machine) Cancel(ctx context.Context, userID int64) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s.State.HasOrder() {
		count, err := m.files.CountPhotos(e.s.StoragePath)
		if err != nil {
			slog.Warn("Failed to count photos before cancel", "error", err, "order", e.s.OrderNumber)
		}
		m.record(ctx, e, model.EventCancelled, count)

		if err := m.files.DeleteFolder(e.s.StoragePath); err != nil {
			slog.Error("Failed to delete order folder", "error", err, "order", e.s.OrderNumber, "path", e.s.StoragePath)
		}
		metrics.SessionsTotal.WithLabelValues("cancelled").Inc()
		slog.Info("Order session cancelled", "user", userID, "order", e.s.OrderNumber)
	}
	release(e)
}

// Dispatch informs the print queue and clears the session. An order short of photos is
// only sent when allowIncomplete is set, otherwise the shortfall is reported back.
func (m *Machine) Dispatch(ctx context.Context, userID int64, allowIncomplete bool) (*Dispatched, error) {
	e := m.store.getOrCreate(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.s.State.HasOrder() {
		return nil, ErrUnexpectedInput
	}

	count, err := m.files.CountPhotos(e.s.StoragePath)
	if err != nil {
		return nil, err
	}
	if count < e.s.RequiredCount {
		if e.s.State == StateComplete {
			e.s.State = StateAwaitingPhotos
		}
		if !allowIncomplete {
			return &Dispatched{Progress: m.progress(e, count)}, nil
		}
	}

	dispatch := model.Dispatch{
		ID:           uuid.NewString(),
		OrderNumber:  e.s.OrderNumber,
		UserID:       e.s.UserID,
		Photos:       count,
		Required:     e.s.RequiredCount,
		Folder:       e.s.StoragePath,
		Incomplete:   count < e.s.RequiredCount,
		DispatchedAt: time.Now().UTC(),
	}
	if err := m.notifier.Notify(ctx, dispatch); err != nil {
		slog.Error("Failed to notify print queue", "error", err, "order", dispatch.OrderNumber, "dispatch_id", dispatch.ID)
		return nil, err
	}

	progress := m.progress(e, count)
	m.record(ctx, e, model.EventDispatched, count)
	metrics.SessionsTotal.WithLabelValues("dispatched").Inc()
	slog.Info("Order dispatched", "user", userID, "order", dispatch.OrderNumber, "dispatch_id", dispatch.ID,
		"photos", count, "incomplete", dispatch.Incomplete)

	release(e)
	progress.State = e.s.State
	return &Dispatched{Progress: progress, Sent: true, Dispatch: dispatch}, nil
}

func (m *Machine) progress(e *entry, count int) Progress {
	return Progress{
		Uploaded: count,
		Required: e.s.RequiredCount,
		State:    e.s.State,
	}
}

func (m *Machine) record(ctx context.Context, e *entry, kind model.EventKind, count int) {
	err := m.journal.Record(ctx, model.SessionEvent{
		OrderNumber: e.s.OrderNumber,
		UserID:      e.s.UserID,
		Kind:        kind,
		Photos:      count,
		Required:    e.s.RequiredCount,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Session event not recorded", "error", err, "kind", kind)
	}
}

func countWarnings(flags inspect.Flags) {
	if flags.AspectOutOfRange {
		metrics.QualityWarningsTotal.WithLabelValues("aspect").Inc()
	}
	if flags.TooBlurry {
		metrics.QualityWarningsTotal.WithLabelValues("blur").Inc()
	}
	if len(flags.DuplicateOf) > 0 {
		metrics.QualityWarningsTotal.WithLabelValues("duplicate").Inc()
	}
}
