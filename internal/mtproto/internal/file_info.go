package internal

const (
	webLocationFlag   = int32(1 << 24)
	fileReferenceFlag = int32(1 << 25)
)

// FileIDType is the Bot API file type tag. Only the types a photo upload can carry are
// listed; the numbering follows the Bot API.
type FileIDType int32

const (
	IDThumbnail FileIDType = iota
	IDProfilePhoto
	IDPhoto
	IDVoice
	IDVideo
	IDDocument
)

type PhotoSizeSourceType uint32

const (
	SourceLegacy PhotoSizeSourceType = iota
	SourceThumbnail
	SourceFullLegacy PhotoSizeSourceType = 5
)

type FileInfo struct {
	DatacenterID  int
	Type          FileIDType
	ID            int64
	AccessHash    int64
	FileReference []byte
	// ThumbSize is set for photos, it selects the stored size to download.
	ThumbSize  string
	Version    int
	SubVersion int
}
