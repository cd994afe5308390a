package pe

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
)

var (
	unpackOptions = &struc.Options{Order: binary.LittleEndian}
	utf16LE       = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

// Cursor is a bounds-checked reader over an immutable image buffer. Every
// structure in this package is read through it.
type Cursor struct {
	data []byte
}

func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

func (c *Cursor) Len() int64 {
	return int64(len(c.data))
}

// Read returns exactly length bytes at offset or ErrOutOfBounds. The
// returned slice aliases the buffer and must not be modified.
func (c *Cursor) Read(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset > c.Len() || length > c.Len()-offset {
		return nil, errors.Wrapf(ErrOutOfBounds, "read %d bytes at 0x%x (size 0x%x)", length, offset, c.Len())
	}
	return c.data[offset : offset+length : offset+length], nil
}

// ReadAtMost returns up to length bytes at offset, truncated at the end of
// the buffer. It returns nil when offset itself is out of range.
func (c *Cursor) ReadAtMost(offset, length int64) []byte {
	if offset < 0 || length <= 0 || offset >= c.Len() {
		return nil
	}
	if length > c.Len()-offset {
		length = c.Len() - offset
	}
	return c.data[offset : offset+length : offset+length]
}

// ReadUint16 read a uint16 from a buffer.
func (c *Cursor) ReadUint16(offset int64) (uint16, error) {
	b, err := c.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 read a uint32 from a buffer.
func (c *Cursor) ReadUint32(offset int64) (uint32, error) {
	b, err := c.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) ReadUint64(offset int64) (uint64, error) {
	b, err := c.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Unpack decodes the struc-tagged structure pointed to by v from offset.
func (c *Cursor) Unpack(offset int64, v any) error {
	size, err := struc.Sizeof(v)
	if err != nil {
		return errors.Wrap(err, "sizing structure")
	}
	b, err := c.Read(offset, int64(size))
	if err != nil {
		return err
	}
	return struc.UnpackWithOptions(bytes.NewReader(b), v, unpackOptions)
}

// ReadCString reads a NUL-terminated ASCII string of at most maxLen bytes.
// A string cut by the end of the buffer is returned as is.
func (c *Cursor) ReadCString(offset int64, maxLen int) (string, error) {
	b := c.ReadAtMost(offset, int64(maxLen))
	if b == nil {
		return "", errors.Wrapf(ErrOutOfBounds, "string at 0x%x", offset)
	}
	return cString(b), nil
}

// ReadUTF16 decodes exactly n UTF-16LE code units at offset.
func (c *Cursor) ReadUTF16(offset int64, n int) (string, error) {
	b, err := c.Read(offset, int64(n)*2)
	if err != nil {
		return "", err
	}
	return decodeUTF16(b), nil
}

// ReadUTF16String decodes a NUL-terminated UTF-16LE string of at most
// maxChars code units. It also returns the number of bytes consumed,
// terminator included.
func (c *Cursor) ReadUTF16String(offset int64, maxChars int) (string, int64, error) {
	b := c.ReadAtMost(offset, int64(maxChars)*2)
	if len(b) < 2 {
		return "", 0, errors.Wrapf(ErrOutOfBounds, "unicode string at 0x%x", offset)
	}
	end := 0
	for end+1 < len(b) {
		if b[end] == 0 && b[end+1] == 0 {
			return decodeUTF16(b[:end]), int64(end + 2), nil
		}
		end += 2
	}
	return decodeUTF16(b[:end]), int64(end), nil
}

func decodeUTF16(b []byte) string {
	s, err := utf16LE.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(s)
}
