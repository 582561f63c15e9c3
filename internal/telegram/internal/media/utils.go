package media

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
)

// Kind is decided once at ingress, handlers never look at the raw message again.
type Kind int

const (
	KindOther Kind = iota
	// KindDocument is an image sent as a file, byte for byte.
	KindDocument
	// KindImage is a photo the transport recompressed.
	KindImage
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindImage:
		return "image"
	case KindText:
		return "text"
	default:
		return "other"
	}
}

type File struct {
	Kind         Kind
	FileID       string
	Name         string
	Size         int64
	MediaGroupID string
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true, ".heic": true, ".heif": true,
}

func Classify(message *models.Message) Kind {
	switch {
	case message == nil:
		return KindOther
	case message.Document != nil:
		if isImageDocument(message.Document) {
			return KindDocument
		}
		return KindOther
	case len(message.Photo) > 0:
		return KindImage
	case message.Video != nil, message.Audio != nil, message.Voice != nil,
		message.VideoNote != nil, message.Sticker != nil, message.Animation != nil:
		return KindOther
	case strings.TrimSpace(message.Text) != "":
		return KindText
	default:
		return KindOther
	}
}

func isImageDocument(doc *models.Document) bool {
	if strings.HasPrefix(doc.MimeType, "image/") {
		return true
	}
	return imageExts[strings.ToLower(filepath.Ext(doc.FileName))]
}

// Extract returns the file carried by a document or image message.
func Extract(message *models.Message) (File, bool) {
	kind := Classify(message)
	dateStr := time.Now().Format("2006-01-02")

	switch kind {
	case KindDocument:
		name := message.Document.FileName
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("document_%s_%d%s", dateStr, message.ID, getExtFromMIME(message.Document.MimeType))
		}
		return File{
			Kind:         kind,
			FileID:       message.Document.FileID,
			Name:         name,
			Size:         message.Document.FileSize,
			MediaGroupID: message.MediaGroupID,
		}, true
	case KindImage:
		largest := message.Photo[len(message.Photo)-1]
		return File{
			Kind:         kind,
			FileID:       largest.FileID,
			Name:         fmt.Sprintf("photo_%s_%d.jpg", dateStr, message.ID),
			Size:         int64(largest.FileSize),
			MediaGroupID: message.MediaGroupID,
		}, true
	default:
		return File{Kind: kind}, false
	}
}

func getExtFromMIME(mimeType string) string {
	mimeMap := map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
		"image/bmp":  ".bmp",
		"image/tiff": ".tiff",
		"image/heic": ".heic",
		"image/heif": ".heif",
	}

	if ext, ok := mimeMap[mimeType]; ok {
		return ext
	}

	parts := strings.Split(mimeType, "/")
	if len(parts) == 2 && parts[1] != "" {
		return "." + parts[1]
	}

	return ".bin"
}
