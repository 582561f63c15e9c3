package internal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const defaultPhotoThumbSize = "y"

var (
	ErrTooShort          = errors.New("file id is too short")
	ErrWebLocation       = errors.New("web file ids cannot be downloaded")
	ErrUnsupportedSource = errors.New("unsupported photo size source")
)

// ParseFileID decodes a Bot API file_id into the MTProto location fields.
func ParseFileID(fileID string) (*FileInfo, error) {
	data, err := parseBase64RLE(fileID)
	if err != nil {
		return nil, err
	}
	if len(data) < 2 {
		return nil, ErrTooShort
	}

	result := &FileInfo{}
	result.Version = int(data[len(data)-1])
	if result.Version == 4 {
		result.SubVersion = int(data[len(data)-2])
	}

	buf := bytes.NewBuffer(data)

	var typeID int32
	if err := binary.Read(buf, binary.LittleEndian, &typeID); err != nil {
		return nil, err
	}
	if typeID&webLocationFlag != 0 {
		return nil, ErrWebLocation
	}
	hasFileReference := typeID&fileReferenceFlag != 0
	result.Type = FileIDType(typeID &^ fileReferenceFlag)

	var dcID int32
	if err := binary.Read(buf, binary.LittleEndian, &dcID); err != nil {
		return nil, err
	}
	result.DatacenterID = int(dcID)

	if hasFileReference {
		ref, consumed, err := readTLBytes(buf.Bytes())
		if err != nil {
			return nil, err
		}
		result.FileReference = bytes.Clone(ref)
		buf.Next(consumed)
	}

	if err := binary.Read(buf, binary.LittleEndian, &result.ID); err != nil {
		return nil, err
	}
	if err := binary.Read(buf, binary.LittleEndian, &result.AccessHash); err != nil {
		return nil, err
	}

	if result.Type <= IDPhoto {
		thumb, err := readThumbSize(buf, result.SubVersion)
		if err != nil {
			return nil, err
		}
		result.ThumbSize = thumb
	}
	return result, nil
}

func readThumbSize(buf *bytes.Buffer, subVersion int) (string, error) {
	if subVersion < 32 {
		var volumeID int64
		if err := binary.Read(buf, binary.LittleEndian, &volumeID); err != nil {
			return "", err
		}
	}

	var source uint32
	if subVersion >= 22 {
		if err := binary.Read(buf, binary.LittleEndian, &source); err != nil {
			return "", err
		}
	}

	switch PhotoSizeSourceType(source) {
	case SourceLegacy, SourceFullLegacy:
		return defaultPhotoThumbSize, nil
	case SourceThumbnail:
		var fileType int32
		if err := binary.Read(buf, binary.LittleEndian, &fileType); err != nil {
			return "", err
		}
		size := buf.Next(4)
		if len(size) < 4 {
			return "", ErrTooShort
		}
		return string(bytes.TrimRight(size, "\x00")), nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnsupportedSource, source)
	}
}
