package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photo-intake-bot/internal/pkg/config"
)

type Service interface {
	SafePath(path string) (string, error)
	CreateFolder(folder string) error
	DeleteFolder(folder string) error
	SavePhoto(ctx context.Context, folder string, req RequestFile) (string, error)
	DeletePhoto(path string) (bool, error)
	ListPhotos(folder string) ([]Photo, error)
	CountPhotos(folder string) (int, error)
	FindDuplicates(ctx context.Context, folder, target string) ([]string, error)
	DuplicatePairs(ctx context.Context, folder string) ([]DuplicatePair, error)
	SweepParts(olderThan time.Duration) (int, error)
}

type DefaultService struct {
	root       string
	ext        string
	seq        *sequence
	downloader Downloader
	large      Downloader
}

func NewDefaultService(cfg *config.StorageCfg) *DefaultService {
	return &DefaultService{
		root: filepath.Clean(cfg.AllowedRoot),
		ext:  cfg.Ext(),
		seq:  newSequence(),
	}
}

func (d *DefaultService) SetDownloader(downloader Downloader) {
	d.downloader = downloader
}

// SetLargeDownloader registers the fallback used for files above BotAPIFileLimit.
func (d *DefaultService) SetLargeDownloader(downloader Downloader) {
	d.large = downloader
}

func (d *DefaultService) Root() string {
	return d.root
}

// SafePath cleans path and makes sure it lies strictly below the allowed root.
func (d *DefaultService) SafePath(path string) (string, error) {
	if path == "" || strings.ContainsRune(path, 0) {
		return "", ErrMalformedPath
	}
	if !filepath.IsAbs(path) {
		return "", ErrMalformedPath
	}

	clean := filepath.Clean(path)
	rel, err := filepath.Rel(d.root, clean)
	if err != nil {
		return "", ErrPathNotAllowed
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathNotAllowed
	}
	return clean, nil
}

func (d *DefaultService) CreateFolder(folder string) error {
	path, err := d.SafePath(folder)
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0o755)
}

func (d *DefaultService) DeleteFolder(folder string) error {
	path, err := d.SafePath(folder)
	if err != nil {
		return err
	}
	return os.RemoveAll(path)
}

// SavePhoto downloads req into folder under a fresh unique name and returns the final path.
// The bytes land in a .part file first, so a listing never sees a half-written photo.
func (d *DefaultService) SavePhoto(ctx context.Context, folder string, req RequestFile) (string, error) {
	if req.FileID == "" {
		return "", ErrNoFileID
	}
	dir, err := d.SafePath(folder)
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(dir, uniqueName(d.seq.next(time.Now()), req.Name))
	dst, err := preparePart(filePath)
	if err != nil {
		return "", &ErrPrepareFilepath{Err: err}
	}
	part := dst.Name()

	err = d.download(ctx, req, dst)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(part); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("Failed to remove partial download", "path", part, "error", rmErr)
		}
		return "", &ErrDownloadFailed{Err: err}
	}

	if err := os.Rename(part, filePath); err != nil {
		_ = os.Remove(part)
		return "", &ErrDownloadFailed{Err: err}
	}
	return filePath, nil
}

func (d *DefaultService) download(ctx context.Context, req RequestFile, dst *os.File) error {
	if req.Size > BotAPIFileLimit && d.large != nil {
		return d.large.DownloadFile(ctx, req.FileID, dst)
	}
	if d.downloader == nil {
		return ErrNoDownloader
	}

	err := d.downloader.DownloadFile(ctx, req.FileID, dst)
	if errors.Is(err, ErrFileTooLarge) && d.large != nil {
		if err := rewind(dst); err != nil {
			return err
		}
		return d.large.DownloadFile(ctx, req.FileID, dst)
	}
	return err
}

func rewind(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.Seek(0, 0)
	return err
}

// DeletePhoto removes a single photo. A file that is already gone is not an error,
// the returned flag tells whether something was actually removed.
func (d *DefaultService) DeletePhoto(path string) (bool, error) {
	safe, err := d.SafePath(path)
	if err != nil {
		return false, err
	}
	if err := os.Remove(safe); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SweepParts removes partial downloads older than olderThan anywhere under the root.
func (d *DefaultService) SweepParts(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), partSuffix) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
		return nil
	})
	return removed, err
}
