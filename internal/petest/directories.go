package petest

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

var le = binary.LittleEndian

type writer struct {
	buf []byte
}

func (w *writer) len() uint32 { return uint32(len(w.buf)) }

func (w *writer) u16(v uint16) { w.buf = le.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = le.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = le.AppendUint64(w.buf, v) }

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) cstring(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *writer) pad(a uint32) {
	for w.len()%a != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) putU32(at, v uint32) { le.PutUint32(w.buf[at:], v) }

func utf16le(s string) []byte {
	b, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return b
}

// ImportDLL describes one import descriptor.
type ImportDLL struct {
	Name      string
	Functions []string
	Ordinals  []uint16
	// IATOnly leaves OriginalFirstThunk zero.
	IATOnly bool
}

// ImportTable lays out an import directory to be placed at base. The
// directory size is (len(dlls)+1)*20.
func ImportTable(base uint32, is64 bool, dlls []ImportDLL) []byte {
	w := &writer{}
	thunkSize := uint32(4)
	if is64 {
		thunkSize = 8
	}

	w.bytes(make([]byte, 20*(len(dlls)+1)))

	for i, dll := range dlls {
		n := uint32(len(dll.Functions) + len(dll.Ordinals))

		iltOff := w.len()
		w.bytes(make([]byte, (n+1)*thunkSize))
		iatOff := w.len()
		w.bytes(make([]byte, (n+1)*thunkSize))

		var thunks []uint64
		for _, fn := range dll.Functions {
			w.pad(2)
			thunks = append(thunks, uint64(base+w.len()))
			w.u16(0)
			w.cstring(fn)
		}
		for _, ord := range dll.Ordinals {
			if is64 {
				thunks = append(thunks, 1<<63|uint64(ord))
			} else {
				thunks = append(thunks, 1<<31|uint64(ord))
			}
		}

		nameOff := w.len()
		w.cstring(dll.Name)

		for j, t := range thunks {
			for _, table := range []uint32{iltOff, iatOff} {
				at := table + uint32(j)*thunkSize
				if is64 {
					le.PutUint64(w.buf[at:], t)
				} else {
					le.PutUint32(w.buf[at:], uint32(t))
				}
			}
		}

		desc := uint32(20 * i)
		if !dll.IATOnly {
			w.putU32(desc, base+iltOff)
		}
		w.putU32(desc+12, base+nameOff)
		w.putU32(desc+16, base+iatOff)
	}
	return w.buf
}

// ExportTable lays out an export directory with the given names at base.
func ExportTable(base uint32, dllName string, names []string) []byte {
	w := &writer{}
	n := uint32(len(names))
	w.bytes(make([]byte, 40))

	functions := w.len()
	for i := uint32(0); i < n; i++ {
		w.u32(0x1000 + i*0x10)
	}
	nameTable := w.len()
	w.bytes(make([]byte, 4*n))
	ordinals := w.len()
	for i := uint32(0); i < n; i++ {
		w.u16(uint16(i))
	}
	for i, name := range names {
		w.putU32(nameTable+uint32(4*i), base+w.len())
		w.cstring(name)
	}
	dllNameOff := w.len()
	w.cstring(dllName)

	w.putU32(12, base+dllNameOff)
	w.putU32(16, 1)
	w.putU32(20, n)
	w.putU32(24, n)
	w.putU32(28, base+functions)
	w.putU32(32, base+nameTable)
	w.putU32(36, base+ordinals)
	return w.buf
}

// LoadConfig returns a load config directory whose first field is size.
// The directory occupies size bytes.
func LoadConfig(size uint32) []byte {
	w := &writer{}
	w.u32(size)
	if size > 4 {
		w.bytes(make([]byte, size-4))
	}
	return w.buf
}

// DebugDirectory returns n IMAGE_DEBUG_DIRECTORY entries of the given type.
func DebugDirectory(n int, typ uint32) []byte {
	w := &writer{}
	for i := 0; i < n; i++ {
		w.u32(0)
		w.u32(0x5f000000)
		w.u16(0)
		w.u16(0)
		w.u32(typ)
		w.u32(0)
		w.u32(0)
		w.u32(0)
	}
	return w.buf
}
