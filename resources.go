package pe

import (
	"fmt"

	"github.com/pkg/errors"
)

type (
	ImageResourceDirectory struct {
		Characteristics      uint32 `struc:"uint32,little"`
		TimeDateStamp        uint32 `struc:"uint32,little"`
		MajorVersion         uint16 `struc:"uint16,little"`
		MinorVersion         uint16 `struc:"uint16,little"`
		NumberOfNamedEntries uint16 `struc:"uint16,little"`
		NumberOfIDEntries    uint16 `struc:"uint16,little"`
	}

	ImageResourceDirectoryEntry struct {
		Name         uint32 `struc:"uint32,little"`
		OffsetToData uint32 `struc:"uint32,little"`
	}

	ImageResourceDataEntry struct {
		OffsetToData uint32 `struc:"uint32,little"`
		Size         uint32 `struc:"uint32,little"`
		CodePage     uint32 `struc:"uint32,little"`
		Reserved     uint32 `struc:"uint32,little"`
	}

	ResourceDirectory struct {
		Struct  ImageResourceDirectory
		Entries []ResourceDirectoryEntry
		// Truncated is set when some entries of this directory could not
		// be read and were left out.
		Truncated bool
	}

	ResourceDirectoryEntry struct {
		Struct    ImageResourceDirectoryEntry
		Name      string
		ID        uint32
		Directory *ResourceDirectory
		Data      *ResourceDataEntry
	}

	ResourceDataEntry struct {
		Struct  ImageResourceDataEntry
		Lang    uint32
		SubLang uint32
		// Entropy of the payload bytes present in the file.
		Entropy float64
	}
)

const (
	resourceDirectorySize = 16
	resourceEntrySize     = 8
)

var resourceTypeNames = map[uint32]string{
	1:  "RT_CURSOR",
	2:  "RT_BITMAP",
	3:  "RT_ICON",
	4:  "RT_MENU",
	5:  "RT_DIALOG",
	6:  "RT_STRING",
	7:  "RT_FONTDIR",
	8:  "RT_FONT",
	9:  "RT_ACCELERATOR",
	10: "RT_RCDATA",
	11: "RT_MESSAGETABLE",
	12: "RT_GROUP_CURSOR",
	14: "RT_GROUP_ICON",
	16: "RT_VERSION",
	17: "RT_DLGINCLUDE",
	19: "RT_PLUGPLAY",
	20: "RT_VXD",
	21: "RT_ANICURSOR",
	22: "RT_ANIICON",
	23: "RT_HTML",
	24: "RT_MANIFEST",
}

func GetResourceTypeName(resourceType ResourceDirectoryEntry) string {
	if resourceType.Name != "" {
		return resourceType.Name
	}
	if name, ok := resourceTypeNames[resourceType.ID]; ok {
		return name
	}
	return fmt.Sprintf("%d", resourceType.ID)
}

func (e *ResourceDirectoryEntry) IsDir() bool {
	return e.Directory != nil
}

// Leaves returns every data entry below d, depth first in directory order.
func (d *ResourceDirectory) Leaves() []*ResourceDataEntry {
	var leaves []*ResourceDataEntry
	var walk func(*ResourceDirectory)
	walk = func(dir *ResourceDirectory) {
		for i := range dir.Entries {
			e := &dir.Entries[i]
			switch {
			case e.Directory != nil:
				walk(e.Directory)
			case e.Data != nil:
				leaves = append(leaves, e.Data)
			}
		}
	}
	if d != nil {
		walk(d)
	}
	return leaves
}

// LanguageLeaves returns the data entries found at exactly type, id,
// language depth. Data entries at the type or id level are ignored. A
// language entry that is a directory ends the walk; entries collected
// before it are kept.
func (d *ResourceDirectory) LanguageLeaves() []*ResourceDataEntry {
	if d == nil {
		return nil
	}
	var leaves []*ResourceDataEntry
	for i := range d.Entries {
		resourceType := &d.Entries[i]
		if resourceType.Directory == nil {
			continue
		}
		for j := range resourceType.Directory.Entries {
			resourceID := &resourceType.Directory.Entries[j]
			if resourceID.Directory == nil {
				continue
			}
			for k := range resourceID.Directory.Entries {
				resourceLang := &resourceID.Directory.Entries[k]
				if resourceLang.Data == nil {
					return leaves
				}
				leaves = append(leaves, resourceLang.Data)
			}
		}
	}
	return leaves
}

// resourceWalker holds the state of one walk of the resource tree.
type resourceWalker struct {
	f       *File
	baseRVA uint32
	visited map[uint32]bool
	leaves  int
}

// Resources parses the resource tree. A damaged subtree is left out and
// its parent marked Truncated; the error is only returned when the root
// directory itself cannot be read.
func (f *File) Resources() (*ResourceDirectory, error) {
	dd := f.Directory(ImageDirectoryEntryResource)
	if dd.VirtualAddress == 0 {
		return nil, nil
	}

	w := &resourceWalker{
		f:       f,
		baseRVA: dd.VirtualAddress,
		visited: make(map[uint32]bool),
	}
	root, err := w.parseDirectory(dd.VirtualAddress, 0)
	if err != nil {
		return nil, errors.Wrap(err, "resource directory")
	}
	return root, nil
}

// ResourceData returns the payload of a data entry, truncated at the end
// of file.
func (f *File) ResourceData(d *ResourceDataEntry) ([]byte, error) {
	return f.GetData(d.Struct.OffsetToData, d.Struct.Size)
}

func (w *resourceWalker) parseDirectory(rva uint32, level int) (*ResourceDirectory, error) {
	f := w.f
	if level >= f.opts.MaxResourceDepth {
		return nil, errors.Wrapf(ErrDirectoryFault, "resource tree deeper than %d", f.opts.MaxResourceDepth)
	}
	if w.visited[rva] {
		return nil, errors.Wrapf(ErrDirectoryFault, "resource directory at RVA 0x%x visited twice", rva)
	}
	w.visited[rva] = true

	dir := &ResourceDirectory{}
	offset, err := f.unpackAtRVA(rva, &dir.Struct)
	if err != nil {
		return nil, err
	}

	numberOfEntries := int(dir.Struct.NumberOfNamedEntries) + int(dir.Struct.NumberOfIDEntries)
	if numberOfEntries > f.opts.MaxResourceEntries {
		return nil, errors.Wrapf(ErrDirectoryFault, "%d resource entries (max: %d)", numberOfEntries, f.opts.MaxResourceEntries)
	}

	for i := 0; i < numberOfEntries; i++ {
		var res ImageResourceDirectoryEntry
		if err := f.cursor.Unpack(offset+resourceDirectorySize+int64(i*resourceEntrySize), &res); err != nil {
			f.logger.Debug("resource directory truncated", "rva", fmt.Sprintf("0x%x", rva), "entries", i, "error", err)
			dir.Truncated = true
			break
		}

		entry := ResourceDirectoryEntry{Struct: res}
		if res.Name&resourceNameIsString != 0 {
			entry.Name = w.readName(w.baseRVA + res.Name&resourceOffsetMask)
		} else {
			entry.ID = res.Name
		}

		target := w.baseRVA + res.OffsetToData&resourceOffsetMask
		if res.OffsetToData&resourceDataIsDirectory != 0 {
			child, err := w.parseDirectory(target, level+1)
			if err != nil {
				f.logger.Debug("skipping resource subtree", "rva", fmt.Sprintf("0x%x", target), "error", err)
				dir.Truncated = true
				continue
			}
			entry.Directory = child
		} else {
			if w.leaves >= f.opts.MaxResourceLeaves {
				f.logger.Warn("too many resources, ignoring the rest", "max", f.opts.MaxResourceLeaves)
				dir.Truncated = true
				break
			}
			data, err := w.parseDataEntry(target, res.Name)
			if err != nil {
				f.logger.Debug("skipping resource data entry", "rva", fmt.Sprintf("0x%x", target), "error", err)
				dir.Truncated = true
				continue
			}
			w.leaves++
			entry.Data = data
		}
		dir.Entries = append(dir.Entries, entry)
	}
	return dir, nil
}

func (w *resourceWalker) parseDataEntry(rva, name uint32) (*ResourceDataEntry, error) {
	data := &ResourceDataEntry{
		Lang:    name & 0x3ff,
		SubLang: name >> 10,
	}
	if _, err := w.f.unpackAtRVA(rva, &data.Struct); err != nil {
		return nil, err
	}
	// OffsetToData is an RVA, not relative to the resource section.
	payload, err := w.f.ResourceData(data)
	if err != nil {
		return nil, err
	}
	data.Entropy = Entropy(payload)
	return data, nil
}

func (w *resourceWalker) readName(rva uint32) string {
	offset, err := w.f.Resolve(rva)
	if err != nil {
		return ""
	}
	length, err := w.f.cursor.ReadUint16(offset)
	if err != nil {
		return ""
	}
	name, err := w.f.cursor.ReadUTF16(offset+2, int(length))
	if err != nil {
		return ""
	}
	return name
}
