package pe

import (
	"github.com/pkg/errors"
)

type DOSHeader struct {
	Magic                    uint16     `struc:"uint16,little"`
	BytesOnLastPageOfFile    uint16     `struc:"uint16,little"`
	PagesInFile              uint16     `struc:"uint16,little"`
	Relocations              uint16     `struc:"uint16,little"`
	SizeOfHeader             uint16     `struc:"uint16,little"`
	MinExtraParagraphsNeeded uint16     `struc:"uint16,little"`
	MaxExtraParagraphsNeeded uint16     `struc:"uint16,little"`
	InitialSS                uint16     `struc:"uint16,little"`
	InitialSP                uint16     `struc:"uint16,little"`
	Checksum                 uint16     `struc:"uint16,little"`
	InitialIP                uint16     `struc:"uint16,little"`
	InitialCS                uint16     `struc:"uint16,little"`
	AddressOfRelocationTable uint16     `struc:"uint16,little"`
	OverlayNumber            uint16     `struc:"uint16,little"`
	ReservedWords1           [4]uint16  `struc:"[4]uint16,little"`
	OEMIdentifier            uint16     `struc:"uint16,little"`
	OEMInformation           uint16     `struc:"uint16,little"`
	ReservedWords2           [10]uint16 `struc:"[10]uint16,little"`
	AddressOfNewEXEHeader    uint32     `struc:"uint32,little"`
}

func (f *File) readDOSHeader() error {
	if err := f.cursor.Unpack(0, &f.DOSHeader); err != nil {
		return errors.Wrapf(ErrMalformedHeader, "DOS header: %v", err)
	}

	if f.DOSHeader.Magic != ImageDOSSignature {
		return errors.Wrapf(ErrMalformedHeader, "invalid DOS signature 0x%04x", f.DOSHeader.Magic)
	}

	if f.DOSHeader.AddressOfNewEXEHeader < 4 || int64(f.DOSHeader.AddressOfNewEXEHeader) > f.cursor.Len() {
		return errors.Wrapf(ErrMalformedHeader, "invalid e_lfanew value 0x%x", f.DOSHeader.AddressOfNewEXEHeader)
	}
	return nil
}
