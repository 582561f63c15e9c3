package file

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ListPhotos returns the accepted photos of folder in upload order. Only regular files in
// the working format count; partial downloads and foreign files are ignored. A folder that
// does not exist yet has no photos.
func (d *DefaultService) ListPhotos(folder string) ([]Photo, error) {
	dir, err := d.SafePath(folder)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &ErrReadDir{Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), d.ext) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	photos := make([]Photo, len(names))
	for i, name := range names {
		photos[i] = Photo{
			Index: i + 1,
			Key:   Key(name),
			Name:  name,
			Path:  filepath.Join(dir, name),
		}
	}
	return photos, nil
}

func (d *DefaultService) CountPhotos(folder string) (int, error) {
	photos, err := d.ListPhotos(folder)
	if err != nil {
		return 0, err
	}
	return len(photos), nil
}
