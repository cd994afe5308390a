package pe

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// File is one parsed image. Headers and the section table are parsed
// eagerly; optional directories are parsed on demand by their accessor
// methods, which keep no state so a File can be shared between readers.
type File struct {
	DOSHeader
	NtHeader
	Sections    []*Section
	StringTable StringTable

	Is64 bool
	Is32 bool

	cursor   *Cursor
	resolver *RVAResolver
	opts     *Options
	logger   hclog.Logger

	f  *os.File
	mm mmap.MMap
}

// Open maps filename read-only and parses it. The mapping is released by
// Close; nothing returned by the File may be used after that.
func Open(filename string, opts *Options) (*File, error) {
	opts = opts.withDefaults()

	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	stat, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}
	if stat.Size() < MinFileSize {
		fd.Close()
		return nil, ErrInvalidPESize
	}
	if stat.Size() > opts.MaxFileSize {
		fd.Close()
		return nil, errors.Wrapf(ErrFileTooLarge, "%d bytes (max: %d)", stat.Size(), opts.MaxFileSize)
	}

	mm, err := mmap.Map(fd, mmap.RDONLY, 0)
	if err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "mapping file")
	}

	file, err := Parse(mm, opts)
	if err != nil {
		_ = mm.Unmap()
		fd.Close()
		return nil, err
	}
	file.f = fd
	file.mm = mm
	return file, nil
}

// Parse parses an image held in memory. data is never modified and must
// stay unchanged while the File is in use.
func Parse(data []byte, opts *Options) (*File, error) {
	opts = opts.withDefaults()
	if len(data) < MinFileSize {
		return nil, ErrInvalidPESize
	}

	file := &File{
		cursor: NewCursor(data),
		opts:   opts,
		logger: opts.Logger,
	}

	if err := file.readDOSHeader(); err != nil {
		return nil, err
	}

	if err := file.readNTHeader(); err != nil {
		return nil, err
	}

	file.readStringTable()

	if err := file.readSections(); err != nil {
		return nil, err
	}
	file.resolver = NewRVAResolver(file.Sections)
	return file, nil
}

func (f *File) Close() error {
	var err error
	if f.mm != nil {
		err = f.mm.Unmap()
		f.mm = nil
	}
	if f.f != nil {
		if cerr := f.f.Close(); err == nil {
			err = cerr
		}
		f.f = nil
	}
	return err
}

// Logger is the logger the File was parsed with.
func (f *File) Logger() hclog.Logger {
	return f.logger
}

func (f *File) GetSize() int64 {
	return f.cursor.Len()
}

func (f *File) Section(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Resolve converts rva to a file offset.
func (f *File) Resolve(rva uint32) (int64, error) {
	offset, err := f.resolver.Resolve(rva)
	if err != nil {
		f.logger.Trace("RVA not found in any section", "rva", fmt.Sprintf("0x%x", rva))
		return 0, err
	}
	return int64(offset), nil
}

// GetData returns up to length bytes at rva, truncated at the end of file.
func (f *File) GetData(rva, length uint32) ([]byte, error) {
	offset, err := f.Resolve(rva)
	if err != nil {
		return nil, err
	}
	data := f.cursor.ReadAtMost(offset, int64(length))
	if data == nil && length > 0 {
		return nil, errors.Wrapf(ErrOutOfBounds, "data at RVA 0x%x", rva)
	}
	return data, nil
}

func (f *File) unpackAtRVA(rva uint32, v any) (int64, error) {
	offset, err := f.Resolve(rva)
	if err != nil {
		return 0, err
	}
	return offset, f.cursor.Unpack(offset, v)
}

func (f *File) getStringAtRVA(rva uint32, maxLen int) (string, error) {
	if rva == 0 {
		return "", errors.Wrap(ErrUnresolvableRva, "null string RVA")
	}
	offset, err := f.Resolve(rva)
	if err != nil {
		return "", err
	}
	return f.cursor.ReadCString(offset, maxLen)
}

func (f *File) adjustFileAlignment(va uint32) uint32 {
	if f.OptionalHeader.FileAlignment < uint32(FileAlignmentHardcodedValue) {
		return va
	}
	return (va / 0x200) * 0x200
}
