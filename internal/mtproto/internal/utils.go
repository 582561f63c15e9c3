package internal

import (
	"encoding/base64"
	"errors"
)

// parseBase64RLE undoes the Bot API encoding: url-safe base64 over a buffer where runs
// of zero bytes are stored as 0x00 followed by the run length.
func parseBase64RLE(s string) ([]byte, error) {
	rle, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}

	decoded := make([]byte, 0, len(rle))
	for i := 0; i < len(rle); i++ {
		if rle[i] == 0x00 && i+1 < len(rle) {
			count := max(int(rle[i+1]), 1)
			for range count {
				decoded = append(decoded, 0x00)
			}
			i++
			continue
		}
		decoded = append(decoded, rle[i])
	}
	return decoded, nil
}

// readTLBytes reads a TL-serialized byte string and returns it with the number of bytes
// consumed, padding included.
func readTLBytes(data []byte) ([]byte, int, error) {
	if len(data) == 0 {
		return nil, 0, errors.New("tl string is empty")
	}

	dataLen := int(data[0])
	startPos := 1
	if dataLen == 255 {
		return nil, 0, errors.New("tl string size length too big")
	}
	if dataLen == 254 {
		if len(data) < 4 {
			return nil, 0, errors.New("tl string size too small")
		}
		dataLen = int(data[1]) | int(data[2])<<8 | int(data[3])<<16
		startPos = 4
	}

	if len(data[startPos:]) < dataLen {
		return nil, 0, errors.New("tl string size too small")
	}
	padding := posmod(-(startPos + dataLen), 4)
	return data[startPos : startPos+dataLen], startPos + dataLen + padding, nil
}

func posmod(a, b int) int {
	rem := a % b
	if rem < 0 {
		rem += b
	}
	return rem
}
