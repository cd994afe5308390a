package pe

import "github.com/pkg/errors"

// ImageLoadConfigHeader is the version-independent prefix of
// IMAGE_LOAD_CONFIG_DIRECTORY32/64.
type ImageLoadConfigHeader struct {
	Size           uint32 `struc:"uint32,little"`
	TimeDateStamp  uint32 `struc:"uint32,little"`
	MajorVersion   uint16 `struc:"uint16,little"`
	MinorVersion   uint16 `struc:"uint16,little"`
	GlobalFlagsClr uint32 `struc:"uint32,little"`
	GlobalFlagsSet uint32 `struc:"uint32,little"`
}

// LoadConfig returns the load configuration header. Only Size is
// guaranteed; a directory too short for the rest yields zeros there.
func (f *File) LoadConfig() (*ImageLoadConfigHeader, error) {
	dd := f.Directory(ImageDirectoryEntryLoadConfig)
	if dd.VirtualAddress == 0 {
		return nil, nil
	}

	offset, err := f.Resolve(dd.VirtualAddress)
	if err != nil {
		return nil, errors.Wrap(err, "load config directory")
	}

	lc := &ImageLoadConfigHeader{}
	if err := f.cursor.Unpack(offset, lc); err != nil {
		size, err := f.cursor.ReadUint32(offset)
		if err != nil {
			return nil, errors.Wrap(err, "load config directory")
		}
		lc.Size = size
	}
	return lc, nil
}
