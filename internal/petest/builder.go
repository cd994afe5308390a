// Package petest builds small synthetic PE images for tests.
package petest

import (
	"encoding/binary"
)

const (
	FileAlignment    = 0x200
	SectionAlignment = 0x1000

	ntHeaderOffset = 0x40
	optHdr32Size   = 224
	optHdr64Size   = 240
)

// Data directory indexes.
const (
	DirExport     = 0
	DirImport     = 1
	DirResource   = 2
	DirDebug      = 6
	DirLoadConfig = 10
)

type Section struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32
	Data            []byte
	Characteristics uint32
	// NoRawData writes PointerToRawData and SizeOfRawData as zero.
	NoRawData bool
	// RawSize overrides SizeOfRawData when non-zero.
	RawSize uint32
}

// Builder lays out a PE image: DOS header, NT headers at 0x40, section
// table, then section data at FileAlignment boundaries.
type Builder struct {
	Is64                bool
	Machine             uint16
	Characteristics     uint16
	ImageBase           uint64
	AddressOfEntryPoint uint32
	BaseOfCode          uint32
	BaseOfData          uint32
	Subsystem           uint16
	NumberOfRvaAndSizes uint32
	Directories         [16][2]uint32
	Sections            []Section
	Overlay             []byte
}

func New(is64 bool) *Builder {
	b := &Builder{
		Is64:                is64,
		Machine:             0x14c,
		Characteristics:     0x0102,
		ImageBase:           0x400000,
		Subsystem:           2,
		NumberOfRvaAndSizes: 16,
	}
	if is64 {
		b.Machine = 0x8664
		b.Characteristics = 0x0022
		b.ImageBase = 0x140000000
	}
	return b
}

// AddSection appends a section whose virtual size equals len(data).
func (b *Builder) AddSection(name string, va uint32, data []byte) *Builder {
	b.Sections = append(b.Sections, Section{
		Name:            name,
		VirtualAddress:  va,
		VirtualSize:     uint32(len(data)),
		Data:            data,
		Characteristics: 0x60000020,
	})
	return b
}

func (b *Builder) SetDirectory(index int, rva, size uint32) *Builder {
	b.Directories[index] = [2]uint32{rva, size}
	return b
}

func (b *Builder) optHdrSize() int {
	if b.Is64 {
		return optHdr64Size
	}
	return optHdr32Size
}

// SectionTableOffset is the file offset of the first section header.
func (b *Builder) SectionTableOffset() int {
	return ntHeaderOffset + 4 + 20 + b.optHdrSize()
}

// RawOffset returns the PointerToRawData the i-th section will get.
func (b *Builder) RawOffset(i int) uint32 {
	offset := align(uint32(b.SectionTableOffset()+40*len(b.Sections)), FileAlignment)
	for j := 0; j < i; j++ {
		if !b.Sections[j].NoRawData {
			offset += align(uint32(len(b.Sections[j].Data)), FileAlignment)
		}
	}
	return offset
}

func (b *Builder) Bytes() []byte {
	headerSize := align(uint32(b.SectionTableOffset()+40*len(b.Sections)), FileAlignment)
	end := b.RawOffset(len(b.Sections))
	buf := make([]byte, end)
	le := binary.LittleEndian

	var sizeOfImage uint32 = SectionAlignment
	var sizeOfCode uint32
	for _, s := range b.Sections {
		if e := align(s.VirtualAddress+s.VirtualSize, SectionAlignment); e > sizeOfImage {
			sizeOfImage = e
		}
		if s.Characteristics&0x20 != 0 {
			sizeOfCode += uint32(len(s.Data))
		}
	}

	// DOS header
	copy(buf, "MZ")
	le.PutUint32(buf[0x3c:], ntHeaderOffset)

	// NT headers
	p := ntHeaderOffset
	copy(buf[p:], "PE\x00\x00")
	p += 4
	le.PutUint16(buf[p:], b.Machine)
	le.PutUint16(buf[p+2:], uint16(len(b.Sections)))
	le.PutUint32(buf[p+4:], 0x5f000000)
	le.PutUint16(buf[p+16:], uint16(b.optHdrSize()))
	le.PutUint16(buf[p+18:], b.Characteristics)
	p += 20

	oh := buf[p:]
	if b.Is64 {
		le.PutUint16(oh[0:], 0x20b)
	} else {
		le.PutUint16(oh[0:], 0x10b)
	}
	oh[2] = 14
	oh[3] = 29
	le.PutUint32(oh[4:], sizeOfCode)
	le.PutUint32(oh[16:], b.AddressOfEntryPoint)
	le.PutUint32(oh[20:], b.BaseOfCode)
	if b.Is64 {
		le.PutUint64(oh[24:], b.ImageBase)
	} else {
		le.PutUint32(oh[24:], b.BaseOfData)
		le.PutUint32(oh[28:], uint32(b.ImageBase))
	}
	le.PutUint32(oh[32:], SectionAlignment)
	le.PutUint32(oh[36:], FileAlignment)
	le.PutUint16(oh[40:], 6)
	le.PutUint16(oh[48:], 6)
	le.PutUint32(oh[56:], sizeOfImage)
	le.PutUint32(oh[60:], headerSize)
	le.PutUint16(oh[68:], b.Subsystem)
	le.PutUint16(oh[70:], 0x8140)

	dirs := 96
	if b.Is64 {
		le.PutUint64(oh[72:], 0x100000)
		le.PutUint64(oh[80:], 0x1000)
		le.PutUint64(oh[88:], 0x100000)
		le.PutUint64(oh[96:], 0x1000)
		le.PutUint32(oh[108:], b.NumberOfRvaAndSizes)
		dirs = 112
	} else {
		le.PutUint32(oh[72:], 0x100000)
		le.PutUint32(oh[76:], 0x1000)
		le.PutUint32(oh[80:], 0x100000)
		le.PutUint32(oh[84:], 0x1000)
		le.PutUint32(oh[92:], b.NumberOfRvaAndSizes)
	}
	for i, d := range b.Directories {
		le.PutUint32(oh[dirs+8*i:], d[0])
		le.PutUint32(oh[dirs+8*i+4:], d[1])
	}

	// section table and data
	p = b.SectionTableOffset()
	for i, s := range b.Sections {
		sh := buf[p+40*i:]
		copy(sh[:8], s.Name)
		le.PutUint32(sh[8:], s.VirtualSize)
		le.PutUint32(sh[12:], s.VirtualAddress)
		if !s.NoRawData {
			rawSize := uint32(len(s.Data))
			if s.RawSize != 0 {
				rawSize = s.RawSize
			}
			le.PutUint32(sh[16:], rawSize)
			le.PutUint32(sh[20:], b.RawOffset(i))
			copy(buf[b.RawOffset(i):], s.Data)
		}
		le.PutUint32(sh[36:], s.Characteristics)
	}

	return append(buf, b.Overlay...)
}

func align(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}
