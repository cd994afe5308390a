package pe

import (
	"strconv"

	"github.com/pkg/errors"
)

type SectionHeader32 struct {
	Name                 [8]uint8 `struc:"[8]uint8"`
	VirtualSize          uint32   `struc:"uint32,little"`
	VirtualAddress       uint32   `struc:"uint32,little"`
	SizeOfRawData        uint32   `struc:"uint32,little"`
	PointerToRawData     uint32   `struc:"uint32,little"`
	PointerToRelocations uint32   `struc:"uint32,little"`
	PointerToLineNumbers uint32   `struc:"uint32,little"`
	NumberOfRelocations  uint16   `struc:"uint16,little"`
	NumberOfLineNumbers  uint16   `struc:"uint16,little"`
	Characteristics      uint32   `struc:"uint32,little"`
}

func (sh *SectionHeader32) fullName(st StringTable) (string, error) {
	if sh.Name[0] != '/' {
		return cString(sh.Name[:]), nil
	}
	i, err := strconv.Atoi(cString(sh.Name[1:]))
	if err != nil {
		return "", err
	}
	return st.String(uint32(i))
}

type SectionHeader struct {
	Name                 string
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

type Section struct {
	SectionHeader

	data []byte
}

// Data returns the raw bytes of the section present in the file. Sections
// without raw data (.bss) and sections cut by the end of file return what
// is actually there.
func (s *Section) Data() []byte {
	return s.data
}

func (s *Section) Entropy() float64 {
	return Entropy(s.data)
}

func (s *Section) Flags() (flags string) {
	if (ImageScnMemRead & s.Characteristics) == ImageScnMemRead {
		flags += "r"
	}
	if (ImageScnMemExecute & s.Characteristics) == ImageScnMemExecute {
		flags += "x"
	}
	if (ImageScnMemWrite & s.Characteristics) == ImageScnMemWrite {
		flags += "w"
	}
	return flags
}

func (f *File) readSections() error {
	offset := f.optionalHeaderOffset() + int64(f.FileHeader.SizeOfOptionalHeader)
	n := int(f.FileHeader.NumberOfSections)
	if n == 0 {
		return errors.Wrap(ErrMalformedImage, "image has no sections")
	}

	f.Sections = make([]*Section, 0, n)
	for i := 0; i < n; i++ {
		sh := new(SectionHeader32)
		if err := f.cursor.Unpack(offset+int64(i*SectionHeaderSize), sh); err != nil {
			f.logger.Debug("section table truncated", "index", i, "sections", n, "error", err)
			break
		}
		name, err := sh.fullName(f.StringTable)
		if err != nil {
			name = cString(sh.Name[:])
		}
		s := &Section{
			SectionHeader: SectionHeader{
				Name:                 name,
				VirtualSize:          sh.VirtualSize,
				VirtualAddress:       sh.VirtualAddress,
				SizeOfRawData:        sh.SizeOfRawData,
				PointerToRawData:     sh.PointerToRawData,
				PointerToRelocations: sh.PointerToRelocations,
				PointerToLineNumbers: sh.PointerToLineNumbers,
				NumberOfRelocations:  sh.NumberOfRelocations,
				NumberOfLineNumbers:  sh.NumberOfLineNumbers,
				Characteristics:      sh.Characteristics,
			},
		}
		// .bss has no bytes on disk
		if sh.PointerToRawData != 0 {
			s.data = f.cursor.ReadAtMost(int64(f.adjustFileAlignment(sh.PointerToRawData)), int64(sh.SizeOfRawData))
		}
		f.Sections = append(f.Sections, s)
	}

	if len(f.Sections) == 0 {
		return errors.Wrap(ErrMalformedImage, "section table is unreadable")
	}
	return nil
}
