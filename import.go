package pe

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

type ImageImportDescriptor struct {
	OriginalFirstThunk uint32 `struc:"uint32,little"`
	TimeDateStamp      uint32 `struc:"uint32,little"`
	ForwarderChain     uint32 `struc:"uint32,little"`
	Name               uint32 `struc:"uint32,little"`
	FirstThunk         uint32 `struc:"uint32,little"`
}

const importDescriptorSize = 20

type ImportFunction struct {
	Name      string
	Hint      uint16
	ByOrdinal bool
	Ordinal   uint32
	ThunkRVA  uint32
}

type Import struct {
	Offset     uint32
	Name       string
	Functions  []*ImportFunction
	Descriptor ImageImportDescriptor
}

// Imports walks the import directory. It returns nil when the image has
// no import directory and an error only when the directory itself cannot
// be located or read. Descriptors whose DLL name or thunk table is
// damaged are skipped.
func (f *File) Imports() ([]*Import, error) {
	dd := f.Directory(ImageDirectoryEntryImport)
	if dd.VirtualAddress == 0 {
		return nil, nil
	}

	offset, err := f.Resolve(dd.VirtualAddress)
	if err != nil {
		return nil, errors.Wrap(err, "import directory")
	}

	var imports []*Import
	for i := 0; ; i++ {
		if i >= f.opts.MaxImportDescriptors {
			f.logger.Warn("too many import descriptors, ignoring the rest", "max", f.opts.MaxImportDescriptors)
			break
		}

		descOffset := offset + int64(i*importDescriptorSize)
		var desc ImageImportDescriptor
		if err := f.cursor.Unpack(descOffset, &desc); err != nil {
			if i == 0 {
				return nil, errors.Wrap(ErrDirectoryFault, err.Error())
			}
			f.logger.Debug("import directory truncated", "descriptors", i, "error", err)
			break
		}
		if desc == (ImageImportDescriptor{}) {
			break
		}

		dllName, err := f.getStringAtRVA(desc.Name, maxDllLength)
		if err != nil || dllName == "" {
			f.logger.Debug("unreadable import DLL name", "descriptor", i, "rva", fmt.Sprintf("0x%x", desc.Name))
			continue
		}
		if !IsValidDosFilename(dllName) {
			f.logger.Debug("invalid import DLL name", "descriptor", i, "name", dllName)
			dllName = invalidImportName
		}

		thunkRVA := desc.OriginalFirstThunk
		if thunkRVA == 0 {
			thunkRVA = desc.FirstThunk
		}
		functions := f.readThunks(thunkRVA)
		if len(functions) == 0 {
			f.logger.Debug("import descriptor has no symbols", "dll", dllName)
			continue
		}

		imports = append(imports, &Import{
			Offset:     uint32(descOffset),
			Name:       dllName,
			Functions:  functions,
			Descriptor: desc,
		})
	}
	return imports, nil
}

// readThunks reads a zero-terminated thunk table of 4 or 8 byte entries,
// depending on the image bitness.
func (f *File) readThunks(rva uint32) []*ImportFunction {
	if rva == 0 {
		return nil
	}

	size := uint32(4)
	if f.Is64 {
		size = 8
	}

	var functions []*ImportFunction
	for i := 0; i < f.opts.MaxImportSymbols; i++ {
		thunkRVA := rva + uint32(i)*size
		offset, err := f.Resolve(thunkRVA)
		if err != nil {
			break
		}

		var (
			value     uint64
			byOrdinal bool
		)
		if f.Is64 {
			value, err = f.cursor.ReadUint64(offset)
			byOrdinal = value&imageOrdinalFlag64 != 0
		} else {
			var v uint32
			v, err = f.cursor.ReadUint32(offset)
			value = uint64(v)
			byOrdinal = v&imageOrdinalFlag32 != 0
		}
		if err != nil || value == 0 {
			break
		}

		imp := &ImportFunction{ThunkRVA: thunkRVA}
		if byOrdinal {
			imp.ByOrdinal = true
			imp.Ordinal = uint32(value & 0xffff)
			imp.Name = "#" + strconv.Itoa(int(imp.Ordinal))
		} else {
			hintNameOffset, err := f.Resolve(uint32(value & 0x7fffffff))
			if err != nil {
				continue
			}
			imp.Hint, err = f.cursor.ReadUint16(hintNameOffset)
			if err != nil {
				continue
			}
			imp.Name, err = f.cursor.ReadCString(hintNameOffset+2, maxImportNameLength)
			if err != nil || imp.Name == "" {
				continue
			}
		}
		functions = append(functions, imp)
	}
	return functions
}
