package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/atomic"
)

const (
	partSuffix     = ".part"
	maxBaseNameLen = 50
	seqWidth       = 16
)

// sequence hands out strictly increasing microsecond stamps, so names sort in upload order
// and never collide within the process.
type sequence struct {
	last *atomic.Int64
}

func newSequence() *sequence {
	return &sequence{last: atomic.NewInt64(0)}
}

func (s *sequence) next(now time.Time) int64 {
	for {
		prev := s.last.Load()
		n := now.UnixMicro()
		if n <= prev {
			n = prev + 1
		}
		if s.last.CompareAndSwap(prev, n) {
			return n
		}
	}
}

func uniqueName(seq int64, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := slug.Make(strings.TrimSuffix(filepath.Base(original), filepath.Ext(original)))
	if base == "" {
		base = "photo"
	}
	if len(base) > maxBaseNameLen {
		base = base[:maxBaseNameLen]
	}
	return fmt.Sprintf("%0*d_%s%s", seqWidth, seq, base, ext)
}

// OriginalName strips the discriminator prefix from a stored name.
func OriginalName(name string) string {
	if _, rest, ok := splitStored(name); ok {
		return rest
	}
	return name
}

// Key returns the discriminator of a stored name, empty for foreign names.
func Key(name string) string {
	if prefix, _, ok := splitStored(name); ok {
		return prefix
	}
	return ""
}

func splitStored(name string) (string, string, bool) {
	prefix, rest, ok := strings.Cut(name, "_")
	if !ok || len(prefix) != seqWidth {
		return "", "", false
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}
	return prefix, rest, true
}

func preparePart(filePath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}

	out, err := os.OpenFile(filePath+partSuffix, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrFileExists
		}
		return nil, err
	}
	return out, nil
}
