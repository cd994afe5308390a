package pe

// MinFileSize On Windows XP (x32) the smallest PE executable is 97 bytes.
const MinFileSize = 97

const ImageDOSSignature = 0x5A4D // MZ

const ImageNTHeaderSignature = 0x00004550

const (
	ImageNtOptionalHdr32Magic = 0x10b
	ImageNtOptionalHdr64Magic = 0x20b
)

// IMAGE_DIRECTORY_ENTRY constants
const (
	ImageDirectoryEntryExport        = 0
	ImageDirectoryEntryImport        = 1
	ImageDirectoryEntryResource      = 2
	ImageDirectoryEntryException     = 3
	ImageDirectoryEntrySecurity      = 4
	ImageDirectoryEntryBaseReLoc     = 5
	ImageDirectoryEntryDebug         = 6
	ImageDirectoryEntryArchitecture  = 7
	ImageDirectoryEntryGlobalPtr     = 8
	ImageDirectoryEntryTls           = 9
	ImageDirectoryEntryLoadConfig    = 10
	ImageDirectoryEntryBoundImport   = 11
	ImageDirectoryEntryIat           = 12
	ImageDirectoryEntryDelayImport   = 13
	ImageDirectoryEntryComDescriptor = 14
)

const ImageNumberOfDirectoryEntries = 16

const (
	ImageScnMemExecute = 0x20000000
	ImageScnMemRead    = 0x40000000
	ImageScnMemWrite   = 0x80000000
)

// RtVersion is the resource type ID of VS_VERSIONINFO.
const RtVersion = 16

const FileAlignmentHardcodedValue = 0x200

const (
	imageOrdinalFlag32  = uint32(0x80000000)
	imageOrdinalFlag64  = uint64(0x8000000000000000)
	maxDllLength        = 0x200
	maxImportNameLength = 0x200
	maxExportNameLength = 0x200
	maxDebugEntries     = 0x100

	// invalidImportName replaces a DLL name that is not a valid DOS filename.
	invalidImportName = "*invalid*"
)

const (
	resourceNameIsString    = 0x80000000
	resourceDataIsDirectory = 0x80000000
	resourceOffsetMask      = 0x7FFFFFFF
)

const vsFixedFileInfoSignature = 0xFEEF04BD

var (
	DOSHeaderSize     = 64
	FileHeaderSize    = 20
	SectionHeaderSize = 40
)
