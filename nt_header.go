package pe

import (
	"github.com/pkg/errors"
)

type NtHeader struct {
	Signature      uint32
	FileHeader     FileHeader
	OptionalHeader OptionalHeader
	DataDirectory  [ImageNumberOfDirectoryEntries]DataDirectory
}

type FileHeader struct {
	Machine              uint16 `struc:"uint16,little"`
	NumberOfSections     uint16 `struc:"uint16,little"`
	TimeDateStamp        uint32 `struc:"uint32,little"`
	PointerToSymbolTable uint32 `struc:"uint32,little"`
	NumberOfSymbols      uint32 `struc:"uint32,little"`
	SizeOfOptionalHeader uint16 `struc:"uint16,little"`
	Characteristics      uint16 `struc:"uint16,little"`
}

type DataDirectory struct {
	VirtualAddress uint32 `struc:"uint32,little"`
	Size           uint32 `struc:"uint32,little"`
}

// OptionalHeader is the PE32/PE32+ optional header widened to a single
// shape. BaseOfData only exists in PE32; HasBaseOfData tells the two apart.
type OptionalHeader struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	HasBaseOfData               bool
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
}

// OptionalHeader32 is the on-disk PE32 layout, data directories excluded.
type OptionalHeader32 struct {
	Magic                       uint16 `struc:"uint16,little"`
	MajorLinkerVersion          uint8  `struc:"uint8"`
	MinorLinkerVersion          uint8  `struc:"uint8"`
	SizeOfCode                  uint32 `struc:"uint32,little"`
	SizeOfInitializedData       uint32 `struc:"uint32,little"`
	SizeOfUninitializedData     uint32 `struc:"uint32,little"`
	AddressOfEntryPoint         uint32 `struc:"uint32,little"`
	BaseOfCode                  uint32 `struc:"uint32,little"`
	BaseOfData                  uint32 `struc:"uint32,little"`
	ImageBase                   uint32 `struc:"uint32,little"`
	SectionAlignment            uint32 `struc:"uint32,little"`
	FileAlignment               uint32 `struc:"uint32,little"`
	MajorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MinorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MajorImageVersion           uint16 `struc:"uint16,little"`
	MinorImageVersion           uint16 `struc:"uint16,little"`
	MajorSubsystemVersion       uint16 `struc:"uint16,little"`
	MinorSubsystemVersion       uint16 `struc:"uint16,little"`
	Win32VersionValue           uint32 `struc:"uint32,little"`
	SizeOfImage                 uint32 `struc:"uint32,little"`
	SizeOfHeaders               uint32 `struc:"uint32,little"`
	CheckSum                    uint32 `struc:"uint32,little"`
	Subsystem                   uint16 `struc:"uint16,little"`
	DllCharacteristics          uint16 `struc:"uint16,little"`
	SizeOfStackReserve          uint32 `struc:"uint32,little"`
	SizeOfStackCommit           uint32 `struc:"uint32,little"`
	SizeOfHeapReserve           uint32 `struc:"uint32,little"`
	SizeOfHeapCommit            uint32 `struc:"uint32,little"`
	LoaderFlags                 uint32 `struc:"uint32,little"`
	NumberOfRvaAndSizes         uint32 `struc:"uint32,little"`
}

// OptionalHeader64 is the on-disk PE32+ layout, data directories excluded.
type OptionalHeader64 struct {
	Magic                       uint16 `struc:"uint16,little"`
	MajorLinkerVersion          uint8  `struc:"uint8"`
	MinorLinkerVersion          uint8  `struc:"uint8"`
	SizeOfCode                  uint32 `struc:"uint32,little"`
	SizeOfInitializedData       uint32 `struc:"uint32,little"`
	SizeOfUninitializedData     uint32 `struc:"uint32,little"`
	AddressOfEntryPoint         uint32 `struc:"uint32,little"`
	BaseOfCode                  uint32 `struc:"uint32,little"`
	ImageBase                   uint64 `struc:"uint64,little"`
	SectionAlignment            uint32 `struc:"uint32,little"`
	FileAlignment               uint32 `struc:"uint32,little"`
	MajorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MinorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MajorImageVersion           uint16 `struc:"uint16,little"`
	MinorImageVersion           uint16 `struc:"uint16,little"`
	MajorSubsystemVersion       uint16 `struc:"uint16,little"`
	MinorSubsystemVersion       uint16 `struc:"uint16,little"`
	Win32VersionValue           uint32 `struc:"uint32,little"`
	SizeOfImage                 uint32 `struc:"uint32,little"`
	SizeOfHeaders               uint32 `struc:"uint32,little"`
	CheckSum                    uint32 `struc:"uint32,little"`
	Subsystem                   uint16 `struc:"uint16,little"`
	DllCharacteristics          uint16 `struc:"uint16,little"`
	SizeOfStackReserve          uint64 `struc:"uint64,little"`
	SizeOfStackCommit           uint64 `struc:"uint64,little"`
	SizeOfHeapReserve           uint64 `struc:"uint64,little"`
	SizeOfHeapCommit            uint64 `struc:"uint64,little"`
	LoaderFlags                 uint32 `struc:"uint32,little"`
	NumberOfRvaAndSizes         uint32 `struc:"uint32,little"`
}

const (
	optionalHeader32Size = 96
	optionalHeader64Size = 112
	dataDirectorySize    = 8
)

func (f *File) ntHeaderOffset() int64 {
	return int64(f.DOSHeader.AddressOfNewEXEHeader)
}

func (f *File) optionalHeaderOffset() int64 {
	return f.ntHeaderOffset() + 4 + int64(FileHeaderSize)
}

func (f *File) readNTHeader() (err error) {
	offset := f.ntHeaderOffset()
	if f.Signature, err = f.cursor.ReadUint32(offset); err != nil {
		return errors.Wrapf(ErrMalformedHeader, "NT signature: %v", err)
	}

	if f.Signature != ImageNTHeaderSignature {
		return errors.Wrapf(ErrMalformedHeader, "not a valid PE signature 0x%08x", f.Signature)
	}

	if err := f.cursor.Unpack(offset+4, &f.FileHeader); err != nil {
		return errors.Wrapf(ErrMalformedHeader, "file header: %v", err)
	}

	return f.readOptionalHeader()
}

func (f *File) readOptionalHeader() error {
	var (
		offset = f.optionalHeaderOffset()
		oh     = &f.OptionalHeader
		minSz  int64
	)

	if f.FileHeader.SizeOfOptionalHeader < 2 {
		return errors.Wrapf(ErrMalformedHeader, "optional header size %d is less than its magic size",
			f.FileHeader.SizeOfOptionalHeader)
	}

	ohMagic, err := f.cursor.ReadUint16(offset)
	if err != nil {
		return errors.Wrapf(ErrMalformedHeader, "failure to read optional header magic: %v", err)
	}

	switch ohMagic {
	case ImageNtOptionalHdr32Magic:
		var oh32 OptionalHeader32
		if err := f.cursor.Unpack(offset, &oh32); err != nil {
			return errors.Wrapf(ErrMalformedHeader, "failure to read PE32 optional header: %v", err)
		}
		*oh = OptionalHeader{
			Magic:                       oh32.Magic,
			MajorLinkerVersion:          oh32.MajorLinkerVersion,
			MinorLinkerVersion:          oh32.MinorLinkerVersion,
			SizeOfCode:                  oh32.SizeOfCode,
			SizeOfInitializedData:       oh32.SizeOfInitializedData,
			SizeOfUninitializedData:     oh32.SizeOfUninitializedData,
			AddressOfEntryPoint:         oh32.AddressOfEntryPoint,
			BaseOfCode:                  oh32.BaseOfCode,
			BaseOfData:                  oh32.BaseOfData,
			HasBaseOfData:               true,
			ImageBase:                   uint64(oh32.ImageBase),
			SectionAlignment:            oh32.SectionAlignment,
			FileAlignment:               oh32.FileAlignment,
			MajorOperatingSystemVersion: oh32.MajorOperatingSystemVersion,
			MinorOperatingSystemVersion: oh32.MinorOperatingSystemVersion,
			MajorImageVersion:           oh32.MajorImageVersion,
			MinorImageVersion:           oh32.MinorImageVersion,
			MajorSubsystemVersion:       oh32.MajorSubsystemVersion,
			MinorSubsystemVersion:       oh32.MinorSubsystemVersion,
			Win32VersionValue:           oh32.Win32VersionValue,
			SizeOfImage:                 oh32.SizeOfImage,
			SizeOfHeaders:               oh32.SizeOfHeaders,
			CheckSum:                    oh32.CheckSum,
			Subsystem:                   oh32.Subsystem,
			DllCharacteristics:          oh32.DllCharacteristics,
			SizeOfStackReserve:          uint64(oh32.SizeOfStackReserve),
			SizeOfStackCommit:           uint64(oh32.SizeOfStackCommit),
			SizeOfHeapReserve:           uint64(oh32.SizeOfHeapReserve),
			SizeOfHeapCommit:            uint64(oh32.SizeOfHeapCommit),
			LoaderFlags:                 oh32.LoaderFlags,
			NumberOfRvaAndSizes:         oh32.NumberOfRvaAndSizes,
		}
		minSz = optionalHeader32Size
		f.Is32 = true
	case ImageNtOptionalHdr64Magic:
		var oh64 OptionalHeader64
		if err := f.cursor.Unpack(offset, &oh64); err != nil {
			return errors.Wrapf(ErrMalformedHeader, "failure to read PE32+ optional header: %v", err)
		}
		*oh = OptionalHeader{
			Magic:                       oh64.Magic,
			MajorLinkerVersion:          oh64.MajorLinkerVersion,
			MinorLinkerVersion:          oh64.MinorLinkerVersion,
			SizeOfCode:                  oh64.SizeOfCode,
			SizeOfInitializedData:       oh64.SizeOfInitializedData,
			SizeOfUninitializedData:     oh64.SizeOfUninitializedData,
			AddressOfEntryPoint:         oh64.AddressOfEntryPoint,
			BaseOfCode:                  oh64.BaseOfCode,
			ImageBase:                   oh64.ImageBase,
			SectionAlignment:            oh64.SectionAlignment,
			FileAlignment:               oh64.FileAlignment,
			MajorOperatingSystemVersion: oh64.MajorOperatingSystemVersion,
			MinorOperatingSystemVersion: oh64.MinorOperatingSystemVersion,
			MajorImageVersion:           oh64.MajorImageVersion,
			MinorImageVersion:           oh64.MinorImageVersion,
			MajorSubsystemVersion:       oh64.MajorSubsystemVersion,
			MinorSubsystemVersion:       oh64.MinorSubsystemVersion,
			Win32VersionValue:           oh64.Win32VersionValue,
			SizeOfImage:                 oh64.SizeOfImage,
			SizeOfHeaders:               oh64.SizeOfHeaders,
			CheckSum:                    oh64.CheckSum,
			Subsystem:                   oh64.Subsystem,
			DllCharacteristics:          oh64.DllCharacteristics,
			SizeOfStackReserve:          oh64.SizeOfStackReserve,
			SizeOfStackCommit:           oh64.SizeOfStackCommit,
			SizeOfHeapReserve:           oh64.SizeOfHeapReserve,
			SizeOfHeapCommit:            oh64.SizeOfHeapCommit,
			LoaderFlags:                 oh64.LoaderFlags,
			NumberOfRvaAndSizes:         oh64.NumberOfRvaAndSizes,
		}
		minSz = optionalHeader64Size
		f.Is64 = true
	default:
		return errors.Wrapf(ErrMalformedHeader, "optional header has unexpected Magic of 0x%x", ohMagic)
	}

	f.readDataDirectories(offset + minSz)
	return nil
}

// readDataDirectories reads up to NumberOfRvaAndSizes entries. Entries past
// the end of the buffer are left zero, which reads as "directory absent".
func (f *File) readDataDirectories(offset int64) {
	n := int(f.OptionalHeader.NumberOfRvaAndSizes)
	if n > ImageNumberOfDirectoryEntries {
		n = ImageNumberOfDirectoryEntries
	}
	for i := 0; i < n; i++ {
		if err := f.cursor.Unpack(offset+int64(i*dataDirectorySize), &f.DataDirectory[i]); err != nil {
			f.logger.Debug("data directory table truncated", "index", i, "error", err)
			return
		}
	}
}

// Directory returns the data directory entry at index, zero when absent.
func (f *File) Directory(index int) DataDirectory {
	if index < 0 || index >= ImageNumberOfDirectoryEntries {
		return DataDirectory{}
	}
	return f.DataDirectory[index]
}
