package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photo-intake-bot/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	content map[string][]byte
	err     error
	calls   int
}

func (f *fakeDownloader) DownloadFile(_ context.Context, fileID string, dst io.Writer) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	body, ok := f.content[fileID]
	if !ok {
		return fmt.Errorf("unknown file %s", fileID)
	}
	_, err := dst.Write(body)
	return err
}

func newTestService(t *testing.T) (*DefaultService, string) {
	t.Helper()
	root := t.TempDir()
	svc := NewDefaultService(&config.StorageCfg{AllowedRoot: root, WorkingFormat: "jpg"})
	return svc, root
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestSafePath(t *testing.T) {
	svc := NewDefaultService(&config.StorageCfg{AllowedRoot: "/allowed", WorkingFormat: "jpg"})

	tests := []struct {
		name string
		path string
		want string
		err  error
	}{
		{"nested", "/allowed/2024/123_a", "/allowed/2024/123_a", nil},
		{"cleaned", "/allowed/x/../123_a/", "/allowed/123_a", nil},
		{"outside", "/outside/root/123", "", ErrPathNotAllowed},
		{"sibling prefix", "/allowed-other/123", "", ErrPathNotAllowed},
		{"escape", "/allowed/../etc", "", ErrPathNotAllowed},
		{"root itself", "/allowed", "", ErrPathNotAllowed},
		{"relative", "allowed/123", "", ErrMalformedPath},
		{"empty", "", "", ErrMalformedPath},
		{"nul byte", "/allowed/a\x00b", "", ErrMalformedPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.SafePath(tt.path)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateFolder_Idempotent(t *testing.T) {
	svc, root := newTestService(t)
	folder := filepath.Join(root, "orders", "123_x")

	require.NoError(t, svc.CreateFolder(folder))
	writeFile(t, filepath.Join(folder, "0000000000000001_a.jpg"), "a")
	require.NoError(t, svc.CreateFolder(folder))

	count, err := svc.CountPhotos(folder)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateFolder_OutsideRoot(t *testing.T) {
	svc, _ := newTestService(t)
	outside := filepath.Join(t.TempDir(), "123")

	assert.ErrorIs(t, svc.CreateFolder(outside), ErrPathNotAllowed)
	_, err := os.Stat(outside)
	assert.True(t, os.IsNotExist(err))
}

func TestListPhotos(t *testing.T) {
	svc, root := newTestService(t)
	folder := filepath.Join(root, "123")

	photos, err := svc.ListPhotos(folder)
	require.NoError(t, err)
	assert.Empty(t, photos)

	writeFile(t, filepath.Join(folder, "0000000000000002_b.jpg"), "b")
	writeFile(t, filepath.Join(folder, "0000000000000001_a.JPG"), "a")
	writeFile(t, filepath.Join(folder, "0000000000000003_c.jpg.part"), "c")
	writeFile(t, filepath.Join(folder, "0000000000000004_d.heic"), "d")
	writeFile(t, filepath.Join(folder, "notes.txt"), "n")
	require.NoError(t, os.Mkdir(filepath.Join(folder, "sub.jpg"), 0o755))

	photos, err = svc.ListPhotos(folder)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, Photo{Index: 1, Key: "0000000000000001", Name: "0000000000000001_a.JPG", Path: filepath.Join(folder, "0000000000000001_a.JPG")}, photos[0])
	assert.Equal(t, 2, photos[1].Index)
	assert.Equal(t, "0000000000000002_b.jpg", photos[1].Name)
}

func TestSavePhoto(t *testing.T) {
	svc, root := newTestService(t)
	folder := filepath.Join(root, "123")
	require.NoError(t, svc.CreateFolder(folder))

	dl := &fakeDownloader{content: map[string][]byte{"f1": []byte("one")}}
	svc.SetDownloader(dl)

	path, err := svc.SavePhoto(context.Background(), folder, RequestFile{Name: "My Photo.JPG", FileID: "f1"})
	require.NoError(t, err)

	assert.Equal(t, folder, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_my-photo.jpg"))
	assert.Equal(t, "my-photo.jpg", OriginalName(filepath.Base(path)))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one", string(body))

	_, err = os.Stat(path + partSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestSavePhoto_DownloadFailureLeavesNothing(t *testing.T) {
	svc, root := newTestService(t)
	folder := filepath.Join(root, "123")
	svc.SetDownloader(&fakeDownloader{err: errors.New("boom")})

	_, err := svc.SavePhoto(context.Background(), folder, RequestFile{Name: "a.jpg", FileID: "f1"})
	var dlErr *ErrDownloadFailed
	require.ErrorAs(t, err, &dlErr)

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSavePhoto_Errors(t *testing.T) {
	svc, root := newTestService(t)
	folder := filepath.Join(root, "123")

	_, err := svc.SavePhoto(context.Background(), folder, RequestFile{Name: "a.jpg"})
	assert.ErrorIs(t, err, ErrNoFileID)

	_, err = svc.SavePhoto(context.Background(), folder, RequestFile{Name: "a.jpg", FileID: "f"})
	assert.ErrorIs(t, err, ErrNoDownloader)

	_, err = svc.SavePhoto(context.Background(), "/elsewhere", RequestFile{Name: "a.jpg", FileID: "f"})
	assert.ErrorIs(t, err, ErrPathNotAllowed)
}

func TestSavePhoto_LargeFileRouting(t *testing.T) {
	svc, root := newTestService(t)
	folder := filepath.Join(root, "123")

	small := &fakeDownloader{err: ErrFileTooLarge}
	large := &fakeDownloader{content: map[string][]byte{"big": []byte("big")}}
	svc.SetDownloader(small)
	svc.SetLargeDownloader(large)

	path, err := svc.SavePhoto(context.Background(), folder, RequestFile{Name: "a.jpg", FileID: "big", Size: BotAPIFileLimit + 1})
	require.NoError(t, err)
	assert.Equal(t, 0, small.calls)
	assert.Equal(t, 1, large.calls)

	// Unknown size: the bot api refuses, the large downloader takes over.
	path2, err := svc.SavePhoto(context.Background(), folder, RequestFile{Name: "b.jpg", FileID: "big"})
	require.NoError(t, err)
	assert.Equal(t, 1, small.calls)
	assert.Equal(t, 2, large.calls)

	body, err := os.ReadFile(path2)
	require.NoError(t, err)
	assert.Equal(t, "big", string(body))
	assert.NotEqual(t, path, path2)
}

func TestDeletePhoto_Missing(t *testing.T) {
	svc, root := newTestService(t)
	path := filepath.Join(root, "123", "0000000000000001_a.jpg")
	writeFile(t, path, "a")

	removed, err := svc.DeletePhoto(path)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.DeletePhoto(path)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCount_EqualsSavedMinusEffectiveDeletions(t *testing.T) {
	svc, root := newTestService(t)
	folder := filepath.Join(root, "123")
	dl := &fakeDownloader{content: map[string][]byte{}}
	svc.SetDownloader(dl)

	var saved []string
	effective := 0
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("f%d", i)
		dl.content[id] = []byte(id)
		path, err := svc.SavePhoto(context.Background(), folder, RequestFile{Name: "p.jpg", FileID: id})
		require.NoError(t, err)
		saved = append(saved, path)

		if i%3 == 2 {
			// Delete the same photo twice, only the first one is effective.
			for range 2 {
				removed, err := svc.DeletePhoto(saved[i-1])
				require.NoError(t, err)
				if removed {
					effective++
				}
			}
		}
	}

	count, err := svc.CountPhotos(folder)
	require.NoError(t, err)
	assert.Equal(t, 12-effective, count)
	assert.Equal(t, 4, effective)
}

func TestDuplicatePairs(t *testing.T) {
	svc, root := newTestService(t)
	folder := filepath.Join(root, "123")
	ctx := context.Background()

	writeFile(t, filepath.Join(folder, "0000000000000001_a.jpg"), "same")
	writeFile(t, filepath.Join(folder, "0000000000000002_b.jpg"), "same")
	writeFile(t, filepath.Join(folder, "0000000000000003_c.jpg"), "other")

	pairs, err := svc.DuplicatePairs(ctx, folder)
	require.NoError(t, err)
	assert.Equal(t, []DuplicatePair{{First: "0000000000000001_a.jpg", Second: "0000000000000002_b.jpg"}}, pairs)

	writeFile(t, filepath.Join(folder, "0000000000000004_d.jpg"), "same")
	pairs, err = svc.DuplicatePairs(ctx, folder)
	require.NoError(t, err)
	assert.Len(t, pairs, 3)
}

func TestFindDuplicates_ExcludesSelf(t *testing.T) {
	svc, root := newTestService(t)
	folder := filepath.Join(root, "123")
	ctx := context.Background()

	first := filepath.Join(folder, "0000000000000001_a.jpg")
	second := filepath.Join(folder, "0000000000000002_b.jpg")
	writeFile(t, first, "same")

	matches, err := svc.FindDuplicates(ctx, folder, first)
	require.NoError(t, err)
	assert.Empty(t, matches)

	writeFile(t, second, "same")
	matches, err = svc.FindDuplicates(ctx, folder, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"0000000000000001_a.jpg"}, matches)

	require.NoError(t, os.Remove(first))
	matches, err = svc.FindDuplicates(ctx, folder, second)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSweepParts(t *testing.T) {
	svc, root := newTestService(t)
	stale := filepath.Join(root, "a", "0000000000000001_x.jpg.part")
	fresh := filepath.Join(root, "b", "0000000000000002_y.jpg.part")
	photo := filepath.Join(root, "a", "0000000000000003_z.jpg")
	writeFile(t, stale, "s")
	writeFile(t, fresh, "f")
	writeFile(t, photo, "p")

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(photo, old, old))

	removed, err := svc.SweepParts(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, photo)
}

func TestUniqueNames(t *testing.T) {
	seq := newSequence()
	now := time.Now()

	a := seq.next(now)
	b := seq.next(now)
	c := seq.next(now.Add(-time.Second))
	assert.Less(t, a, b)
	assert.Less(t, b, c)

	name := uniqueName(a, "Фото 1.HEIC")
	assert.Len(t, strings.SplitN(name, "_", 2)[0], seqWidth)
	assert.True(t, strings.HasSuffix(name, ".heic"))

	assert.True(t, strings.HasSuffix(uniqueName(b, ".jpg"), "_photo.jpg"))
	assert.Less(t, uniqueName(a, "z.jpg"), uniqueName(b, "a.jpg"))
}

func TestOriginalName(t *testing.T) {
	assert.Equal(t, "my-photo.jpg", OriginalName("0001712345678901_my-photo.jpg"))
	assert.Equal(t, "plain.jpg", OriginalName("plain.jpg"))
	assert.Equal(t, "12_a.jpg", OriginalName("12_a.jpg"))
	assert.Equal(t, "abcdefghijklmnop_a.jpg", OriginalName("abcdefghijklmnop_a.jpg"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "0001712345678901", Key("0001712345678901_my-photo.jpg"))
	assert.Empty(t, Key("plain.jpg"))
	assert.Empty(t, Key("12_a.jpg"))
	assert.Empty(t, Key("abcdefghijklmnop_a.jpg"))
}
