package pe

import (
	"github.com/pkg/errors"
)

type ImageExportDirectory struct {
	Characteristics       uint32 `struc:"uint32,little"`
	TimeDateStamp         uint32 `struc:"uint32,little"`
	MajorVersion          uint16 `struc:"uint16,little"`
	MinorVersion          uint16 `struc:"uint16,little"`
	Name                  uint32 `struc:"uint32,little"`
	Base                  uint32 `struc:"uint32,little"`
	NumberOfFunctions     uint32 `struc:"uint32,little"`
	NumberOfNames         uint32 `struc:"uint32,little"`
	AddressOfFunctions    uint32 `struc:"uint32,little"`
	AddressOfNames        uint32 `struc:"uint32,little"`
	AddressOfNameOrdinals uint32 `struc:"uint32,little"`
}

type ExportFunction struct {
	Name    string
	Ordinal uint32
}

type Export struct {
	Struct    ImageExportDirectory
	Name      string
	Functions []ExportFunction
}

// Exports reads the names table of the export directory. Only named
// exports are listed; a names table cut short yields the names read so far.
func (f *File) Exports() (*Export, error) {
	dd := f.Directory(ImageDirectoryEntryExport)
	if dd.VirtualAddress == 0 {
		return nil, nil
	}

	export := &Export{}
	if _, err := f.unpackAtRVA(dd.VirtualAddress, &export.Struct); err != nil {
		return nil, errors.Wrap(err, "export directory")
	}
	export.Name, _ = f.getStringAtRVA(export.Struct.Name, maxDllLength)

	n := int(export.Struct.NumberOfNames)
	if n == 0 {
		return export, nil
	}
	if n > f.opts.MaxExportSymbols {
		f.logger.Warn("too many export names, ignoring the rest", "names", n, "max", f.opts.MaxExportSymbols)
		n = f.opts.MaxExportSymbols
	}

	namesOffset, err := f.Resolve(export.Struct.AddressOfNames)
	if err != nil {
		return nil, errors.Wrap(err, "export names table")
	}
	ordinalsOffset, ordErr := f.Resolve(export.Struct.AddressOfNameOrdinals)

	export.Functions = make([]ExportFunction, 0, n)
	for i := 0; i < n; i++ {
		nameRVA, err := f.cursor.ReadUint32(namesOffset + int64(i*4))
		if err != nil {
			f.logger.Debug("export names table truncated", "read", i, "names", n)
			break
		}
		fn := ExportFunction{}
		fn.Name, _ = f.getStringAtRVA(nameRVA, maxExportNameLength)
		if ordErr == nil {
			if ord, err := f.cursor.ReadUint16(ordinalsOffset + int64(i*2)); err == nil {
				fn.Ordinal = uint32(ord) + export.Struct.Base
			}
		}
		export.Functions = append(export.Functions, fn)
	}
	return export, nil
}
