package pe

import (
	"bytes"
	"fmt"
)

const COFFSymbolSize = 18

// cString converts ASCII byte sequence b to string.
// It stops once it finds 0 or reaches end of b.
func cString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	return string(b[:i])
}

// StringTable is a COFF string table.
type StringTable []byte

// readStringTable loads the COFF string table used for section names longer
// than eight bytes. Images without one, or with a damaged one, keep the
// short names.
func (f *File) readStringTable() {
	// COFF string table is located right after COFF symbol table.
	if f.FileHeader.PointerToSymbolTable == 0 {
		return
	}
	offset := int64(f.FileHeader.PointerToSymbolTable) + COFFSymbolSize*int64(f.FileHeader.NumberOfSymbols)
	l, err := f.cursor.ReadUint32(offset)
	if err != nil {
		f.logger.Debug("fail to read string table length", "error", err)
		return
	}
	// string table length includes itself
	if l <= 4 {
		return
	}
	f.StringTable = f.cursor.ReadAtMost(offset+4, int64(l-4))
}

// String extracts string from COFF string table st at offset start.
func (st StringTable) String(start uint32) (string, error) {
	// start includes 4 bytes of string table length
	if start < 4 {
		return "", fmt.Errorf("offset %d is before the start of string table", start)
	}
	start -= 4
	if int(start) > len(st) {
		return "", fmt.Errorf("offset %d is beyond the end of string table", start)
	}
	return cString(st[start:]), nil
}
