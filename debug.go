package pe

import "github.com/pkg/errors"

type ImageDebugDirectory struct {
	Characteristics  uint32 `struc:"uint32,little"`
	TimeDateStamp    uint32 `struc:"uint32,little"`
	MajorVersion     uint16 `struc:"uint16,little"`
	MinorVersion     uint16 `struc:"uint16,little"`
	Type             uint32 `struc:"uint32,little"`
	SizeOfData       uint32 `struc:"uint32,little"`
	AddressOfRawData uint32 `struc:"uint32,little"`
	PointerToRawData uint32 `struc:"uint32,little"`
}

const debugDirectorySize = 28

// DebugDirectories returns the debug directory entries. Entries beyond the
// end of file are dropped.
func (f *File) DebugDirectories() ([]ImageDebugDirectory, error) {
	dd := f.Directory(ImageDirectoryEntryDebug)
	if dd.VirtualAddress == 0 {
		return nil, nil
	}

	offset, err := f.Resolve(dd.VirtualAddress)
	if err != nil {
		return nil, errors.Wrap(err, "debug directory")
	}

	n := int(dd.Size / debugDirectorySize)
	if n > maxDebugEntries {
		f.logger.Warn("too many debug entries, ignoring the rest", "entries", n, "max", maxDebugEntries)
		n = maxDebugEntries
	}

	entries := make([]ImageDebugDirectory, 0, n)
	for i := 0; i < n; i++ {
		var entry ImageDebugDirectory
		if err := f.cursor.Unpack(offset+int64(i*debugDirectorySize), &entry); err != nil {
			if i == 0 {
				return nil, errors.Wrap(ErrDirectoryFault, err.Error())
			}
			f.logger.Debug("debug directory truncated", "entries", i, "error", err)
			break
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
