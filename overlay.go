package pe

type largestOffsetAndSize struct {
	offset, size int64
}

// OverlayOffset returns the file offset of data appended after the last
// byte the image describes, or 0 when there is none.
func (f *File) OverlayOffset() int64 {
	fileSize := f.cursor.Len()
	largest := largestOffsetAndSize{}
	update := func(offset, size int64) {
		sum := offset + size
		if sum <= fileSize && sum > largest.offset+largest.size {
			largest = largestOffsetAndSize{offset: offset, size: size}
		}
	}

	update(f.optionalHeaderOffset(), int64(f.FileHeader.SizeOfOptionalHeader))

	for _, section := range f.Sections {
		if section.PointerToRawData == 0 {
			continue
		}
		update(int64(f.adjustFileAlignment(section.PointerToRawData)), int64(section.SizeOfRawData))
	}

	for idx, directory := range f.DataDirectory {
		// the security directory holds a file offset, not an RVA
		if idx == ImageDirectoryEntrySecurity || directory.VirtualAddress == 0 {
			continue
		}
		offset, err := f.Resolve(directory.VirtualAddress)
		if err != nil {
			continue
		}
		update(offset, int64(directory.Size))
	}

	if end := largest.offset + largest.size; end < fileSize {
		return end
	}
	return 0
}

// Overlay returns the bytes after OverlayOffset, or nil.
func (f *File) Overlay() []byte {
	offset := f.OverlayOffset()
	if offset == 0 {
		return nil
	}
	return f.cursor.ReadAtMost(offset, f.cursor.Len()-offset)
}
