package file

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"photo-intake-bot/internal/inspect"

	"golang.org/x/sync/errgroup"
)

const hashWorkers = 5

// FindDuplicates returns the names of accepted photos in folder whose content equals the
// file at target. The target itself is never reported. Hashes are computed on every call.
func (d *DefaultService) FindDuplicates(ctx context.Context, folder, target string) ([]string, error) {
	want, err := inspect.ContentHash(target)
	if err != nil {
		return nil, errors.Join(ErrCalculateChecksum, err)
	}

	photos, hashes, err := d.hashFolder(ctx, folder)
	if err != nil {
		return nil, err
	}

	self := filepath.Clean(target)
	var matches []string
	for i, photo := range photos {
		if photo.Path == self || hashes[i] == "" {
			continue
		}
		if hashes[i] == want {
			matches = append(matches, photo.Name)
		}
	}
	return matches, nil
}

// DuplicatePairs reports every unordered pair of accepted photos with equal content.
func (d *DefaultService) DuplicatePairs(ctx context.Context, folder string) ([]DuplicatePair, error) {
	photos, hashes, err := d.hashFolder(ctx, folder)
	if err != nil {
		return nil, err
	}

	var pairs []DuplicatePair
	for i := range photos {
		if hashes[i] == "" {
			continue
		}
		for j := i + 1; j < len(photos); j++ {
			if hashes[i] == hashes[j] {
				pairs = append(pairs, DuplicatePair{First: photos[i].Name, Second: photos[j].Name})
			}
		}
	}
	return pairs, nil
}

// hashFolder hashes the current folder listing in parallel. Photos deleted while the scan
// runs keep an empty hash and are skipped by the callers.
func (d *DefaultService) hashFolder(ctx context.Context, folder string) ([]Photo, []string, error) {
	photos, err := d.ListPhotos(folder)
	if err != nil {
		return nil, nil, err
	}

	hashes := make([]string, len(photos))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(hashWorkers)

	for i, photo := range photos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sum, err := inspect.ContentHash(photo.Path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return errors.Join(ErrCalculateChecksum, err)
			}
			hashes[i] = sum
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return photos, hashes, nil
}
