// Package inspect implements the per-photo checks: format normalization, aspect ratio,
// blur estimation and content hashing.
package inspect

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"photo-intake-bot/internal/pkg/config"

	_ "github.com/jdeng/goheif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type Flags struct {
	AspectOutOfRange bool
	TooBlurry        bool
	DuplicateOf      []string
}

func (f Flags) Any() bool {
	return f.AspectOutOfRange || f.TooBlurry || len(f.DuplicateOf) > 0
}

type Report struct {
	AspectRatio float64
	BlurScore   float64
	Flags       Flags
}

type Inspector struct {
	format  string
	ext     string
	quality int
	cfg     *config.QualityCfg
}

func New(storage *config.StorageCfg, quality *config.QualityCfg) *Inspector {
	format := "jpeg"
	if storage.WorkingFormat == "png" {
		format = "png"
	}
	return &Inspector{
		format:  format,
		ext:     storage.Ext(),
		quality: storage.JPEGQuality,
		cfg:     quality,
	}
}

// Normalize makes sure the file at path is stored in the working format and returns the
// resulting path. Files already in the working format are left untouched.
func (i *Inspector) Normalize(path string) (string, error) {
	format, err := sniffFormat(path)
	if err != nil {
		return "", err
	}

	target := strings.TrimSuffix(path, filepath.Ext(path)) + i.ext
	if format == i.format {
		if target == path {
			return path, nil
		}
		if err := os.Rename(path, target); err != nil {
			return "", fmt.Errorf("failed to rename %s: %w", path, err)
		}
		return target, nil
	}

	img, err := decodeFile(path)
	if err != nil {
		return "", err
	}
	img = applyOrientation(img, readOrientation(path))

	if err := i.encode(img, target); err != nil {
		return "", err
	}
	if target != path {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to remove source %s: %w", path, err)
		}
	}
	return target, nil
}

// AspectRatio returns the minor/major side ratio, always within [0,1].
func (i *Inspector) AspectRatio(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, &DecodeError{Path: path, Err: err}
	}
	return ratio(cfg.Width, cfg.Height)
}

// ContentHash returns the hex MD5 of the file. Used for equality only.
func (i *Inspector) ContentHash(path string) (string, error) {
	return ContentHash(path)
}

func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := md5.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Check runs the advisory checks. Duplicates are the caller's concern.
func (i *Inspector) Check(path string) (Report, error) {
	aspect, err := i.AspectRatio(path)
	if err != nil {
		return Report{}, err
	}
	blur := i.BlurScore(path)
	return Report{
		AspectRatio: aspect,
		BlurScore:   blur,
		Flags: Flags{
			AspectOutOfRange: aspect <= i.cfg.MinAspectRatio,
			TooBlurry:        blur < i.cfg.BlurThreshold,
		},
	}, nil
}

func (i *Inspector) encode(img image.Image, target string) error {
	tmp := target + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return &EncodeError{Path: target, Err: err}
	}

	switch i.format {
	case "png":
		err = png.Encode(out, img)
	default:
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: i.quality})
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return &EncodeError{Path: target, Err: err}
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return &EncodeError{Path: target, Err: err}
	}
	return nil
}

func sniffFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", &DecodeError{Path: path, Err: err}
	}
	return format, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

func ratio(width, height int) (float64, error) {
	if width <= 0 || height <= 0 {
		return 0, ErrEmptyImage
	}
	minor, major := width, height
	if minor > major {
		minor, major = major, minor
	}
	return float64(minor) / float64(major), nil
}
