package pe

import (
	"fmt"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
)

const (
	vsVersionInfoKey   = "VS_VERSION_INFO"
	stringFileInfoKey  = "StringFileInfo"
	varFileInfoKey     = "VarFileInfo"
	versionBlockHeader = 6
	maxVersionKeyChars = 0x100
	maxVersionBlocks   = 0x400
)

// VSFixedFileInfo is the fixed part of a VS_VERSIONINFO resource.
type VSFixedFileInfo struct {
	Signature        uint32 `struc:"uint32,little"`
	StrucVersion     uint32 `struc:"uint32,little"`
	FileVersionMS    uint32 `struc:"uint32,little"`
	FileVersionLS    uint32 `struc:"uint32,little"`
	ProductVersionMS uint32 `struc:"uint32,little"`
	ProductVersionLS uint32 `struc:"uint32,little"`
	FileFlagsMask    uint32 `struc:"uint32,little"`
	FileFlags        uint32 `struc:"uint32,little"`
	FileOS           uint32 `struc:"uint32,little"`
	FileType         uint32 `struc:"uint32,little"`
	FileSubtype      uint32 `struc:"uint32,little"`
	FileDateMS       uint32 `struc:"uint32,little"`
	FileDateLS       uint32 `struc:"uint32,little"`
}

// VersionInfo is a decoded VS_VERSIONINFO resource.
type VersionInfo struct {
	Fixed *VSFixedFileInfo
	// Strings holds StringFileInfo entries of every string table, in file
	// order. A key repeated across tables keeps its last value.
	Strings *ordereddict.Dict
	// Vars holds VarFileInfo entries, e.g. Translation.
	Vars *ordereddict.Dict
}

// Record flattens the version info into a single key/value record. The
// fixed info contributes flags, os, type, file_version, product_version,
// signature and struct_version.
func (v *VersionInfo) Record() *ordereddict.Dict {
	record := ordereddict.NewDict()
	for _, k := range v.Strings.Keys() {
		value, _ := v.Strings.Get(k)
		record.Set(k, value)
	}
	for _, k := range v.Vars.Keys() {
		value, _ := v.Vars.Get(k)
		record.Set(k, value)
	}
	if v.Fixed != nil {
		record.Set("flags", v.Fixed.FileFlags)
		record.Set("os", v.Fixed.FileOS)
		record.Set("type", v.Fixed.FileType)
		record.Set("file_version", v.Fixed.FileVersionLS)
		record.Set("product_version", v.Fixed.ProductVersionLS)
		record.Set("signature", v.Fixed.Signature)
		record.Set("struct_version", v.Fixed.StrucVersion)
	}
	return record
}

// Len is the number of distinct keys in Record.
func (v *VersionInfo) Len() int {
	return v.Record().Len()
}

// VersionInfo decodes the first RT_VERSION resource of rsrc. It returns
// nil when there is none.
func (f *File) VersionInfo(rsrc *ResourceDirectory) (*VersionInfo, error) {
	leaf := versionLeaf(rsrc)
	if leaf == nil {
		return nil, nil
	}

	payload, err := f.ResourceData(leaf)
	if err != nil {
		return nil, errors.Wrap(err, "version info")
	}
	return parseVersionInfo(NewCursor(payload), f)
}

func versionLeaf(rsrc *ResourceDirectory) *ResourceDataEntry {
	if rsrc == nil {
		return nil
	}
	for i := range rsrc.Entries {
		e := &rsrc.Entries[i]
		if e.Name != "" || e.ID != RtVersion {
			continue
		}
		if e.Directory != nil {
			if leaves := e.Directory.Leaves(); len(leaves) > 0 {
				return leaves[0]
			}
		} else if e.Data != nil {
			return e.Data
		}
	}
	return nil
}

type versionBlockHdr struct {
	Length      uint16 `struc:"uint16,little"`
	ValueLength uint16 `struc:"uint16,little"`
	Type        uint16 `struc:"uint16,little"`
}

type versionBlock struct {
	versionBlockHdr
	Key string

	offset      int64
	valueOffset int64
	end         int64
}

func readVersionBlock(c *Cursor, offset int64) (*versionBlock, error) {
	b := &versionBlock{offset: offset}
	if err := c.Unpack(offset, &b.versionBlockHdr); err != nil {
		return nil, err
	}
	if b.Length < versionBlockHeader {
		return nil, errors.Wrapf(ErrDirectoryFault, "version block at 0x%x has length %d", offset, b.Length)
	}
	key, n, err := c.ReadUTF16String(offset+versionBlockHeader, maxVersionKeyChars)
	if err != nil {
		return nil, err
	}
	b.Key = key
	b.end = offset + int64(b.Length)
	if b.end > c.Len() {
		b.end = c.Len()
	}
	keyEnd := offset + versionBlockHeader + n
	if n < 2 || keyEnd > b.end {
		return nil, errors.Wrapf(ErrDirectoryFault, "version block key at 0x%x runs past the block", offset)
	}
	if term, _ := c.ReadUint16(keyEnd - 2); term != 0 {
		return nil, errors.Wrapf(ErrDirectoryFault, "version block key at 0x%x is not terminated", offset)
	}
	b.valueOffset = align4(keyEnd)
	return b, nil
}

// eachChild calls fn for every block laid out back to back in [start, end).
func eachChild(c *Cursor, start, end int64, fn func(*versionBlock)) {
	offset := start
	for i := 0; offset < end && i < maxVersionBlocks; i++ {
		b, err := readVersionBlock(c, offset)
		if err != nil {
			return
		}
		fn(b)
		next := align4(offset + int64(b.Length))
		if next <= offset {
			return
		}
		offset = next
	}
}

func parseVersionInfo(c *Cursor, f *File) (*VersionInfo, error) {
	root, err := readVersionBlock(c, 0)
	if err != nil {
		return nil, errors.Wrap(err, "version info")
	}
	if root.Key != vsVersionInfoKey {
		return nil, errors.Wrapf(ErrDirectoryFault, "version info key %q", root.Key)
	}

	vi := &VersionInfo{
		Strings: ordereddict.NewDict(),
		Vars:    ordereddict.NewDict(),
	}

	if root.ValueLength != 0 {
		fixed := &VSFixedFileInfo{}
		if err := c.Unpack(root.valueOffset, fixed); err != nil {
			f.logger.Debug("fixed file info truncated", "error", err)
		} else {
			if fixed.Signature != vsFixedFileInfoSignature {
				f.logger.Debug("unexpected fixed file info signature", "signature", fmt.Sprintf("0x%x", fixed.Signature))
			}
			vi.Fixed = fixed
		}
	}

	eachChild(c, align4(root.valueOffset+int64(root.ValueLength)), root.end, func(child *versionBlock) {
		switch {
		case strings.HasPrefix(child.Key, stringFileInfoKey):
			eachChild(c, child.valueOffset, child.end, func(table *versionBlock) {
				eachChild(c, table.valueOffset, table.end, func(s *versionBlock) {
					vi.Strings.Set(s.Key, readVersionString(c, s))
				})
			})
		case strings.HasPrefix(child.Key, varFileInfoKey):
			eachChild(c, child.valueOffset, child.end, func(v *versionBlock) {
				vi.Vars.Set(v.Key, readVersionVar(c, v))
			})
		default:
			f.logger.Debug("unknown version info block", "key", child.Key)
		}
	})
	return vi, nil
}

func readVersionString(c *Cursor, b *versionBlock) string {
	if b.ValueLength == 0 || b.valueOffset >= b.end {
		return ""
	}
	s, _, err := c.ReadUTF16String(b.valueOffset, int((b.end-b.valueOffset)/2))
	if err != nil {
		return ""
	}
	return s
}

// readVersionVar renders each DWORD of a Var value as language and code
// page, "0x0409 0x04b0".
func readVersionVar(c *Cursor, b *versionBlock) string {
	var parts []string
	for off := b.valueOffset; off+4 <= b.valueOffset+int64(b.ValueLength) && off+4 <= b.end; off += 4 {
		v, err := c.ReadUint32(off)
		if err != nil {
			break
		}
		parts = append(parts, fmt.Sprintf("0x%04x 0x%04x", v&0xffff, v>>16))
	}
	return strings.Join(parts, " ")
}
