package session

import (
	"context"
	"log/slog"

	"photo-intake-bot/internal/file"
)

// review inspects photos[from:to] of folder. A negative to means up to the end. Duplicate
// matches are always computed against the whole folder.
func (m *Machine) review(ctx context.Context, folder string, from, to int) (*Review, error) {
	photos, err := m.files.ListPhotos(folder)
	if err != nil {
		return nil, err
	}
	if to < 0 || to > len(photos) {
		to = len(photos)
	}
	from = min(max(from, 0), to)

	pairs, err := m.files.DuplicatePairs(ctx, folder)
	if err != nil {
		slog.Warn("Duplicate scan failed", "error", err, "path", folder)
	}
	matches := duplicateIndex(pairs)

	out := &Review{Pairs: pairs}
	for _, photo := range photos[from:to] {
		report, err := m.inspector.Check(photo.Path)
		if err != nil {
			slog.Warn("Failed to inspect photo during review", "error", err, "path", photo.Path)
		}
		report.Flags.DuplicateOf = matches[photo.Name]
		out.Photos = append(out.Photos, PhotoReport{Photo: photo, Report: report})
	}
	return out, nil
}

func duplicateIndex(pairs []file.DuplicatePair) map[string][]string {
	index := make(map[string][]string, len(pairs)*2)
	for _, p := range pairs {
		index[p.First] = append(index[p.First], p.Second)
		index[p.Second] = append(index[p.Second], p.First)
	}
	return index
}

// layout splits count photos into blocks of BlockSize.
func layout(count int) []Block {
	var blocks []Block
	for first := 1; first <= count; first += BlockSize {
		blocks = append(blocks, Block{
			Index: len(blocks),
			First: first,
			Last:  min(first+BlockSize-1, count),
		})
	}
	return blocks
}
