package dump

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/transac/go-offline-cache/internal/cache/model"
)

var errShortFrame = errors.New("frame truncated")

// encodeEntry lays an entry out as length-prefixed fields:
// url, cachedAt, content type, meta pairs, payload. All little-endian.
func encodeEntry(e *model.Entry) []byte {
	b := e.Body()
	size := 4 + len(e.URL()) + 8 + 4 + len(b.ContentType) + 4 + 4 + len(b.Bytes)
	for k, v := range b.Meta {
		size += 8 + len(k) + len(v)
	}

	buf := make([]byte, 0, size)
	buf = appendStr(buf, e.URL())
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.CachedAt()))
	buf = appendStr(buf, b.ContentType)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Meta)))
	for k, v := range b.Meta {
		buf = appendStr(buf, k)
		buf = appendStr(buf, v)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Bytes)))
	return append(buf, b.Bytes...)
}

func decodeEntry(data []byte) (*model.Entry, error) {
	c := cursor{data: data}

	url, err := c.str()
	if err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	cachedAt, err := c.u64()
	if err != nil {
		return nil, fmt.Errorf("cachedAt: %w", err)
	}
	contentType, err := c.str()
	if err != nil {
		return nil, fmt.Errorf("content type: %w", err)
	}

	metaCount, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("meta count: %w", err)
	}
	var meta map[string]string
	if metaCount > 0 {
		if int(metaCount) > len(data) { // a count larger than the frame is corrupt
			return nil, errShortFrame
		}
		meta = make(map[string]string, metaCount)
		for i := uint32(0); i < metaCount; i++ {
			k, err := c.str()
			if err != nil {
				return nil, fmt.Errorf("meta key: %w", err)
			}
			v, err := c.str()
			if err != nil {
				return nil, fmt.Errorf("meta value: %w", err)
			}
			meta[k] = v
		}
	}

	payload, err := c.bytes()
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}

	return model.Restore(url, model.Body{
		Bytes:       payload,
		ContentType: contentType,
		Meta:        meta,
	}, int64(cachedAt)), nil
}

type cursor struct {
	data []byte
	off  int
}

func (c *cursor) u32() (uint32, error) {
	if c.off+4 > len(c.data) {
		return 0, errShortFrame
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return v, nil
}

func (c *cursor) u64() (uint64, error) {
	if c.off+8 > len(c.data) {
		return 0, errShortFrame
	}
	v := binary.LittleEndian.Uint64(c.data[c.off:])
	c.off += 8
	return v, nil
}

func (c *cursor) bytes() ([]byte, error) {
	n, err := c.u32()
	if err != nil {
		return nil, err
	}
	if c.off+int(n) > len(c.data) {
		return nil, errShortFrame
	}
	out := make([]byte, n)
	copy(out, c.data[c.off:])
	c.off += int(n)
	return out, nil
}

func (c *cursor) str() (string, error) {
	b, err := c.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func appendStr(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
