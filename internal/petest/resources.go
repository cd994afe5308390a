package petest

// ResourceNode is one entry of a resource directory. Nodes with Children
// become subdirectories; the others are leaves carrying Data.
type ResourceNode struct {
	ID       uint32
	Name     string
	Children []*ResourceNode
	Data     []byte
	// Size overrides the data entry Size when non-zero.
	Size uint32
	// DataRVA overrides the data entry OffsetToData when non-zero.
	DataRVA uint32
	// BrokenDir makes the entry point to a subdirectory far outside the
	// resource section.
	BrokenDir bool
}

// ResourceTree lays out a resource directory rooted at base. Layout is
// directories, then data entries, then name strings, then payloads.
func ResourceTree(base uint32, root []*ResourceNode) []byte {
	type dirRef struct {
		children []*ResourceNode
		offset   uint32
	}

	var (
		dirs      []*dirRef
		leaves    []*ResourceNode
		named     []*ResourceNode
		dirOffset = map[*ResourceNode]uint32{}
		leafOff   = map[*ResourceNode]uint32{}
		nameOff   = map[*ResourceNode]uint32{}
		dataOff   = map[*ResourceNode]uint32{}
		size      uint32
	)

	var layout func(children []*ResourceNode) *dirRef
	layout = func(children []*ResourceNode) *dirRef {
		d := &dirRef{children: children, offset: size}
		dirs = append(dirs, d)
		size += 16 + 8*uint32(len(children))
		for _, c := range children {
			if c.Name != "" {
				named = append(named, c)
			}
			switch {
			case c.BrokenDir:
			case c.Children != nil:
				dirOffset[c] = layout(c.Children).offset
			default:
				leaves = append(leaves, c)
			}
		}
		return d
	}
	layout(root)

	for _, l := range leaves {
		leafOff[l] = size
		size += 16
	}
	for _, n := range named {
		nameOff[n] = size
		size += 2 + uint32(len(utf16le(n.Name)))
		size = align(size, 4)
	}
	for _, l := range leaves {
		dataOff[l] = size
		size = align(size+uint32(len(l.Data)), 4)
	}

	w := &writer{buf: make([]byte, size)}
	for _, d := range dirs {
		var nNamed, nID uint16
		for _, c := range d.children {
			if c.Name != "" {
				nNamed++
			} else {
				nID++
			}
		}
		le.PutUint16(w.buf[d.offset+12:], nNamed)
		le.PutUint16(w.buf[d.offset+14:], nID)
		for i, c := range d.children {
			at := d.offset + 16 + 8*uint32(i)
			if c.Name != "" {
				w.putU32(at, 0x80000000|nameOff[c])
			} else {
				w.putU32(at, c.ID)
			}
			switch {
			case c.BrokenDir:
				w.putU32(at+4, 0x80000000|0x00fffff0)
			case c.Children != nil:
				w.putU32(at+4, 0x80000000|dirOffset[c])
			default:
				w.putU32(at+4, leafOff[c])
			}
		}
	}
	for _, l := range leaves {
		rva := base + dataOff[l]
		if l.DataRVA != 0 {
			rva = l.DataRVA
		}
		n := uint32(len(l.Data))
		if l.Size != 0 {
			n = l.Size
		}
		w.putU32(leafOff[l], rva)
		w.putU32(leafOff[l]+4, n)
		copy(w.buf[dataOff[l]:], l.Data)
	}
	for _, n := range named {
		s := utf16le(n.Name)
		le.PutUint16(w.buf[nameOff[n]:], uint16(len(s)/2))
		copy(w.buf[nameOff[n]+2:], s)
	}
	return w.buf
}

// VersionString is one StringFileInfo entry.
type VersionString struct {
	Key, Value string
}

// VersionInfo describes a VS_VERSIONINFO resource.
type VersionInfo struct {
	NoFixed       bool
	FileVersionLS uint32
	FileFlags     uint32
	Strings       []VersionString
	Translations  []uint32
}

func (v VersionInfo) Bytes() []byte {
	var children [][]byte

	if len(v.Strings) > 0 {
		var strs [][]byte
		for _, s := range v.Strings {
			value := append(utf16le(s.Value), 0, 0)
			strs = append(strs, versionBlock(s.Key, uint16(len(value)/2), 1, value, nil))
		}
		table := versionBlock("040904b0", 0, 1, nil, strs)
		children = append(children, versionBlock("StringFileInfo", 0, 1, nil, [][]byte{table}))
	}
	if len(v.Translations) > 0 {
		w := &writer{}
		for _, t := range v.Translations {
			w.u32(t)
		}
		tr := versionBlock("Translation", uint16(w.len()), 0, w.buf, nil)
		children = append(children, versionBlock("VarFileInfo", 0, 1, nil, [][]byte{tr}))
	}

	var fixed []byte
	if !v.NoFixed {
		w := &writer{}
		w.u32(0xFEEF04BD)
		w.u32(0x00010000)
		w.u32(0x00010000)
		w.u32(v.FileVersionLS)
		w.u32(0x00010000)
		w.u32(v.FileVersionLS)
		w.u32(0x3f)
		w.u32(v.FileFlags)
		w.u32(0x40004)
		w.u32(1)
		w.u32(0)
		w.u32(0)
		w.u32(0)
		fixed = w.buf
	}
	return versionBlock("VS_VERSION_INFO", uint16(len(fixed)), 0, fixed, children)
}

func versionBlock(key string, valueLength, typ uint16, value []byte, children [][]byte) []byte {
	w := &writer{}
	w.u16(0)
	w.u16(valueLength)
	w.u16(typ)
	w.bytes(utf16le(key))
	w.u16(0)
	w.pad(4)
	w.bytes(value)
	for _, c := range children {
		w.pad(4)
		w.bytes(c)
	}
	le.PutUint16(w.buf[0:], uint16(w.len()))
	return w.buf
}
