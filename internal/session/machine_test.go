package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"photo-intake-bot/internal/file"
	"photo-intake-bot/internal/inspect"
	"photo-intake-bot/internal/order"
	"photo-intake-bot/internal/pkg/config"
	"photo-intake-bot/internal/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user int64 = 100

type fakeLookup struct {
	orders map[string]*order.Resolution
}

func (f *fakeLookup) Lookup(_ context.Context, number string) (*order.Resolution, error) {
	number, err := order.NormalizeOrderNumber(number)
	if err != nil {
		return nil, err
	}
	res, ok := f.orders[number]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return res, nil
}

type fakeDownloader struct {
	mu      sync.Mutex
	content map[string][]byte
}

func (f *fakeDownloader) put(id string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[id] = body
}

func (f *fakeDownloader) DownloadFile(_ context.Context, fileID string, dst io.Writer) error {
	f.mu.Lock()
	body, ok := f.content[fileID]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown file %s", fileID)
	}
	_, err := dst.Write(body)
	return err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []model.Dispatch
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, d model.Dispatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, d)
	return nil
}

type fixture struct {
	root     string
	machine  *Machine
	lookup   *fakeLookup
	dl       *fakeDownloader
	notifier *fakeNotifier
	files    *file.DefaultService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	storage := &config.StorageCfg{AllowedRoot: root, WorkingFormat: "jpg", JPEGQuality: 90}
	quality := &config.QualityCfg{MinAspectRatio: 0.5, BlurThreshold: 0}

	files := file.NewDefaultService(storage)
	dl := &fakeDownloader{content: map[string][]byte{}}
	files.SetDownloader(dl)

	f := &fixture{
		root:     root,
		lookup:   &fakeLookup{orders: map[string]*order.Resolution{}},
		dl:       dl,
		notifier: &fakeNotifier{},
		files:    files,
	}
	f.machine = NewMachine(NewStore(), f.lookup, files, inspect.New(storage, quality), f.notifier, order.NopJournal{})
	return f
}

func (f *fixture) addOrder(number string, quantity int) string {
	path := filepath.Join(f.root, "2024", number+"_ab")
	f.lookup.orders[number] = &order.Resolution{OrderNumber: number, Quantity: quantity, Path: path}
	return path
}

func (f *fixture) open(t *testing.T, number string) *Opened {
	t.Helper()
	f.machine.Start(user)
	opened, err := f.machine.SubmitOrderNumber(context.Background(), user, number)
	require.NoError(t, err)
	return opened
}

// photo registers a distinct JPEG under id and returns the upload for it.
func (f *fixture) photo(t *testing.T, id string, seed int) Upload {
	t.Helper()
	f.dl.put(id, jpegBytes(t, seed))
	return Upload{FileID: id, Name: id + ".jpg"}
}

func jpegBytes(t *testing.T, seed int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * seed), G: uint8(y + seed), B: uint8(seed * 7), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestMachine_TwoPhotoScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder := f.addOrder("123", 2)

	assert.Equal(t, StateAwaitingOrderNumber, f.machine.Start(user).State)

	opened, err := f.machine.SubmitOrderNumber(ctx, user, " 1 2 3 ")
	require.NoError(t, err)
	assert.Equal(t, "123", opened.OrderNumber)
	assert.Equal(t, Progress{Uploaded: 0, Required: 2, State: StateAwaitingPhotos}, opened.Progress)
	assert.False(t, opened.Resumed)
	assert.Nil(t, opened.Review)
	assert.DirExists(t, folder)

	first, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, "a", 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, first.Outcome)
	assert.NotEmpty(t, first.UploadID)
	assert.Equal(t, 1, first.Uploaded)
	assert.Equal(t, StateAwaitingPhotos, first.State)
	assert.False(t, first.Completed)

	second, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, "b", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Uploaded)
	assert.Equal(t, StateComplete, second.State)
	assert.True(t, second.Completed)
	require.NotNil(t, second.Review)
	assert.Len(t, second.Review.Photos, 2)
	assert.Empty(t, second.Review.Pairs)

	removal, err := f.machine.DeletePhoto(ctx, user, file.Key(first.Name))
	require.NoError(t, err)
	assert.True(t, removal.Removed)
	assert.Equal(t, "a.jpg", removal.Name)
	assert.Equal(t, 1, removal.Uploaded)
	assert.Equal(t, StateAwaitingPhotos, removal.State)
	assert.Equal(t, StateAwaitingPhotos, f.machine.Snapshot(user).State)
}

func TestMachine_PathOutsideRoot(t *testing.T) {
	f := newFixture(t)
	f.lookup.orders["123"] = &order.Resolution{OrderNumber: "123", Quantity: 2, Path: "/outside/root/123"}

	f.machine.Start(user)
	_, err := f.machine.SubmitOrderNumber(context.Background(), user, "123")
	assert.ErrorIs(t, err, ErrOrderUnavailable)

	snap := f.machine.Snapshot(user)
	assert.Equal(t, StateAwaitingOrderNumber, snap.State)
	assert.Empty(t, snap.StoragePath)
	assert.NoDirExists(t, "/outside/root/123")

	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMachine_LookupFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.machine.Start(user)

	_, err := f.machine.SubmitOrderNumber(context.Background(), user, "404")
	assert.ErrorIs(t, err, ErrOrderUnavailable)
	assert.NotErrorIs(t, err, order.ErrOrderNotFound)
	assert.Equal(t, StateAwaitingOrderNumber, f.machine.Snapshot(user).State)
}

func TestMachine_UnexpectedInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("1", 1)

	_, err := f.machine.SubmitOrderNumber(ctx, user, "1")
	assert.ErrorIs(t, err, ErrUnexpectedInput)

	_, err = f.machine.SubmitPhoto(ctx, user, f.photo(t, "a", 1))
	assert.ErrorIs(t, err, ErrUnexpectedInput)

	_, err = f.machine.Dispatch(ctx, user, true)
	assert.ErrorIs(t, err, ErrUnexpectedInput)

	_, err = f.machine.RetractLast(ctx, user)
	assert.ErrorIs(t, err, ErrUnexpectedInput)

	assert.Equal(t, StateIdle, f.machine.Snapshot(user).State)
}

func TestMachine_ResumesFromDisk(t *testing.T) {
	f := newFixture(t)
	folder := f.addOrder("7", 1)
	require.NoError(t, os.MkdirAll(folder, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "0000000000000001_old.jpg"), jpegBytes(t, 3), 0o644))

	opened := f.open(t, "7")
	assert.True(t, opened.Resumed)
	assert.Equal(t, 1, opened.Uploaded)
	assert.Equal(t, StateComplete, opened.State)
	require.NotNil(t, opened.Review)
	assert.Len(t, opened.Review.Photos, 1)

	count, err := f.files.CountPhotos(folder)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMachine_LossyInterception(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("5", 5)
	f.open(t, "5")

	up := f.photo(t, "a", 1)
	up.Lossy = true
	res, err := f.machine.SubmitPhoto(ctx, user, up)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIntercepted, res.Outcome)
	assert.Equal(t, 1, res.Pending)
	assert.Zero(t, res.Uploaded)

	results, err := f.machine.ConfirmPending(ctx, user)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeAccepted, results[0].Outcome)
	assert.Equal(t, 1, results[0].Uploaded)

	_, err = f.machine.ConfirmPending(ctx, user)
	assert.ErrorIs(t, err, ErrNothingPending)

	up = f.photo(t, "b", 2)
	up.Lossy = true
	_, err = f.machine.SubmitPhoto(ctx, user, up)
	require.NoError(t, err)
	dropped, err := f.machine.DiscardPending(user)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Empty(t, f.machine.Snapshot(user).Pending)

	results, err = f.machine.SuppressWarnings(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.True(t, f.machine.Snapshot(user).SuppressQualityWarnings)

	up = f.photo(t, "c", 3)
	up.Lossy = true
	res, err = f.machine.SubmitPhoto(ctx, user, up)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, res.Outcome)
	assert.Equal(t, 2, res.Uploaded)
}

func TestMachine_SuppressWarningsAcceptsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("5", 5)
	f.open(t, "5")

	for i, id := range []string{"a", "b"} {
		up := f.photo(t, id, i+1)
		up.Lossy = true
		up.MediaGroupID = "album"
		_, err := f.machine.SubmitPhoto(ctx, user, up)
		require.NoError(t, err)
	}

	results, err := f.machine.SuppressWarnings(ctx, user)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[1].Uploaded)
}

func TestMachine_UndecodablePhotoIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder := f.addOrder("9", 2)
	f.open(t, "9")

	f.dl.put("broken", []byte("definitely not an image"))
	res, err := f.machine.SubmitPhoto(ctx, user, Upload{FileID: "broken", Name: "broken.heic"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Error(t, res.Reason)
	assert.Zero(t, res.Uploaded)
	assert.Equal(t, StateAwaitingPhotos, res.State)

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMachine_DownloadFailureIsRejected(t *testing.T) {
	f := newFixture(t)
	f.addOrder("9", 2)
	f.open(t, "9")

	res, err := f.machine.SubmitPhoto(context.Background(), user, Upload{FileID: "missing", Name: "x.jpg"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	var dlErr *file.ErrDownloadFailed
	assert.ErrorAs(t, res.Reason, &dlErr)
}

func TestMachine_DuplicateIsFlagged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("3", 3)
	f.open(t, "3")

	first, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, "a", 4))
	require.NoError(t, err)
	assert.Empty(t, first.Report.Flags.DuplicateOf)

	second, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, "b", 4))
	require.NoError(t, err)
	assert.Equal(t, []string{first.Name}, second.Report.Flags.DuplicateOf)

	removal, err := f.machine.RetractLast(ctx, user)
	require.NoError(t, err)
	assert.True(t, removal.Removed)
	assert.Equal(t, "b.jpg", removal.Name)
	assert.Equal(t, 1, removal.Uploaded)
}

func TestMachine_RetractOnEmptyFolder(t *testing.T) {
	f := newFixture(t)
	f.addOrder("3", 3)
	f.open(t, "3")

	removal, err := f.machine.RetractLast(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, removal.Removed)
	assert.Zero(t, removal.Uploaded)

	removal, err = f.machine.DeletePhoto(context.Background(), user, "1700000000000004")
	require.NoError(t, err)
	assert.False(t, removal.Removed)
}

func TestMachine_DeleteTwiceFromOneBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("5", 5)
	f.open(t, "5")

	for i, id := range []string{"a", "b", "c"} {
		_, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, id, i+1))
		require.NoError(t, err)
	}

	shown, err := f.machine.Review(ctx, user, 0)
	require.NoError(t, err)
	require.Len(t, shown.Photos, 3)

	removal, err := f.machine.DeletePhoto(ctx, user, shown.Photos[0].Photo.Key)
	require.NoError(t, err)
	assert.True(t, removal.Removed)
	assert.Equal(t, "a.jpg", removal.Name)

	removal, err = f.machine.DeletePhoto(ctx, user, shown.Photos[1].Photo.Key)
	require.NoError(t, err)
	assert.True(t, removal.Removed)
	assert.Equal(t, "b.jpg", removal.Name)
	assert.Equal(t, 1, removal.Uploaded)

	// The same button pressed again finds nothing and deletes nothing else.
	removal, err = f.machine.DeletePhoto(ctx, user, shown.Photos[1].Photo.Key)
	require.NoError(t, err)
	assert.False(t, removal.Removed)
	assert.Equal(t, 1, removal.Uploaded)

	left, err := f.files.ListPhotos(f.machine.Snapshot(user).StoragePath)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "c.jpg", file.OriginalName(left[0].Name))
}

func TestMachine_PhotoAfterCompleteIsCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("1", 1)
	f.open(t, "1")

	res, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, "a", 1))
	require.NoError(t, err)
	assert.True(t, res.Completed)

	res, err = f.machine.SubmitPhoto(ctx, user, f.photo(t, "b", 2))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, res.Outcome)
	assert.False(t, res.Completed)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, StateComplete, res.State)
}

func TestMachine_CancelRemovesFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder := f.addOrder("4", 3)
	f.open(t, "4")

	_, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, "a", 1))
	require.NoError(t, err)

	f.machine.Cancel(ctx, user)
	assert.NoDirExists(t, folder)
	snap := f.machine.Snapshot(user)
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.OrderNumber)

	f.machine.Cancel(ctx, user)
	assert.Equal(t, StateIdle, f.machine.Snapshot(user).State)
}

func TestMachine_DispatchIncomplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("8", 2)
	f.open(t, "8")

	_, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, "a", 1))
	require.NoError(t, err)

	res, err := f.machine.Dispatch(ctx, user, false)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, 1, res.Missing())
	assert.Empty(t, f.notifier.sent)
	assert.Equal(t, StateAwaitingPhotos, f.machine.Snapshot(user).State)

	res, err = f.machine.Dispatch(ctx, user, true)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.True(t, res.Dispatch.Incomplete)
	assert.Equal(t, 1, res.Dispatch.Photos)
	assert.Equal(t, StateIdle, f.machine.Snapshot(user).State)
	require.Len(t, f.notifier.sent, 1)
}

func TestMachine_DispatchExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("8", 1)
	f.open(t, "8")

	_, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, "a", 1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.machine.Dispatch(ctx, user, false)
		}()
	}
	wg.Wait()

	unexpected := 0
	for _, err := range errs {
		if errors.Is(err, ErrUnexpectedInput) {
			unexpected++
		} else {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 3, unexpected)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "8", f.notifier.sent[0].OrderNumber)
	assert.False(t, f.notifier.sent[0].Incomplete)
	assert.NotEmpty(t, f.notifier.sent[0].ID)
}

func TestMachine_DispatchFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("8", 1)
	f.open(t, "8")
	_, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, "a", 1))
	require.NoError(t, err)

	f.notifier.err = errors.New("operator unreachable")
	_, err = f.machine.Dispatch(ctx, user, false)
	require.Error(t, err)
	assert.Equal(t, StateComplete, f.machine.Snapshot(user).State)

	f.notifier.err = nil
	res, err := f.machine.Dispatch(ctx, user, false)
	require.NoError(t, err)
	assert.True(t, res.Sent)
}

func TestMachine_ConcurrentUploadsCompleteOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	folder := f.addOrder("6", 3)
	f.open(t, "6")

	const uploads = 6
	ups := make([]Upload, uploads)
	for i := range ups {
		ups[i] = f.photo(t, fmt.Sprintf("p%d", i), i+1)
	}

	var wg sync.WaitGroup
	results := make([]*PhotoResult, uploads)
	for i := range ups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.machine.SubmitPhoto(ctx, user, ups[i])
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	completed := 0
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, OutcomeAccepted, res.Outcome)
		if res.Completed {
			completed++
		}
	}
	assert.Equal(t, 1, completed)

	count, err := f.files.CountPhotos(folder)
	require.NoError(t, err)
	assert.Equal(t, uploads, count)
	assert.Equal(t, StateComplete, f.machine.Snapshot(user).State)
}

func TestMachine_ReviewBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addOrder("12", 20)
	f.open(t, "12")

	for i := range 12 {
		_, err := f.machine.SubmitPhoto(ctx, user, f.photo(t, fmt.Sprintf("p%02d", i), i+1))
		require.NoError(t, err)
	}

	blocks, err := f.machine.Blocks(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []Block{{Index: 0, First: 1, Last: 10}, {Index: 1, First: 11, Last: 12}}, blocks)

	review, err := f.machine.Review(ctx, user, 1)
	require.NoError(t, err)
	require.Len(t, review.Photos, 2)
	assert.Equal(t, 11, review.Photos[0].Photo.Index)
	assert.Equal(t, 0.75, review.Photos[0].Report.AspectRatio)
	assert.True(t, f.machine.Snapshot(user).Editing)

	review, err = f.machine.Review(ctx, user, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, review.Block.Index)

	progress, err := f.machine.ResumeUploading(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 12, progress.Uploaded)
	assert.False(t, f.machine.Snapshot(user).Editing)
}

func TestLayout(t *testing.T) {
	assert.Empty(t, layout(0))
	assert.Equal(t, []Block{{Index: 0, First: 1, Last: 10}}, layout(10))
	assert.Len(t, layout(21), 3)
}
