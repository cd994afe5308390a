package features

import (
	"github.com/hashicorp/go-hclog"

	pe "github.com/wanglei-coder/pefeatures"
)

// ExtractFile opens filename and extracts its features. Only fatal image
// errors are returned; faults in optional structures degrade the affected
// features to zero.
func ExtractFile(filename string, opts *pe.Options) (*Map, error) {
	f, err := pe.Open(filename, opts)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Extract(f), nil
}

// ExtractBytes extracts the features of an image held in memory.
func ExtractBytes(data []byte, opts *pe.Options) (*Map, error) {
	f, err := pe.Parse(data, opts)
	if err != nil {
		return nil, err
	}
	return Extract(f), nil
}

// Extract builds the feature map of a parsed image. It never fails: every
// optional structure that is absent or damaged yields its zero default.
func Extract(f *pe.File) *Map {
	m := newMap()
	logger := f.Logger()

	addHeaderFeatures(m, f)
	addSectionFeatures(m, f)
	addImportFeatures(m, f, logger)
	addExportFeatures(m, f, logger)
	rsrc := addResourceFeatures(m, f, logger)
	addLoadConfigFeatures(m, f, logger)
	addVersionInfoFeatures(m, f, rsrc, logger)
	return m
}

func absorb(logger hclog.Logger, directory string, err error) {
	logger.Debug("directory fault absorbed, using defaults", "directory", directory, "error", err)
}

func addHeaderFeatures(m *Map, f *pe.File) {
	fh := &f.FileHeader
	oh := &f.OptionalHeader

	m.set("Machine", uint64(fh.Machine))
	m.set("SizeOfOptionalHeader", uint64(fh.SizeOfOptionalHeader))
	m.set("Characteristics", uint64(fh.Characteristics))
	m.set("MajorLinkerVersion", uint64(oh.MajorLinkerVersion))
	m.set("MinorLinkerVersion", uint64(oh.MinorLinkerVersion))
	m.set("SizeOfCode", uint64(oh.SizeOfCode))
	m.set("SizeOfInitializedData", uint64(oh.SizeOfInitializedData))
	m.set("SizeOfUninitializedData", uint64(oh.SizeOfUninitializedData))
	m.set("AddressOfEntryPoint", uint64(oh.AddressOfEntryPoint))
	m.set("BaseOfCode", uint64(oh.BaseOfCode))
	// PE32+ has no BaseOfData
	var baseOfData uint64
	if oh.HasBaseOfData {
		baseOfData = uint64(oh.BaseOfData)
	}
	m.set("BaseOfData", baseOfData)
	m.set("ImageBase", oh.ImageBase)
	m.set("SectionAlignment", uint64(oh.SectionAlignment))
	m.set("FileAlignment", uint64(oh.FileAlignment))
	m.set("MajorOperatingSystemVersion", uint64(oh.MajorOperatingSystemVersion))
	m.set("MinorOperatingSystemVersion", uint64(oh.MinorOperatingSystemVersion))
	m.set("MajorImageVersion", uint64(oh.MajorImageVersion))
	m.set("MinorImageVersion", uint64(oh.MinorImageVersion))
	m.set("MajorSubsystemVersion", uint64(oh.MajorSubsystemVersion))
	m.set("MinorSubsystemVersion", uint64(oh.MinorSubsystemVersion))
	m.set("SizeOfImage", uint64(oh.SizeOfImage))
	m.set("SizeOfHeaders", uint64(oh.SizeOfHeaders))
	m.set("CheckSum", uint64(oh.CheckSum))
	m.set("Subsystem", uint64(oh.Subsystem))
	m.set("DllCharacteristics", uint64(oh.DllCharacteristics))
	m.set("SizeOfStackReserve", oh.SizeOfStackReserve)
	m.set("SizeOfStackCommit", oh.SizeOfStackCommit)
	m.set("SizeOfHeapReserve", oh.SizeOfHeapReserve)
	m.set("SizeOfHeapCommit", oh.SizeOfHeapCommit)
	m.set("LoaderFlags", uint64(oh.LoaderFlags))
	m.set("NumberOfRvaAndSizes", uint64(oh.NumberOfRvaAndSizes))
}

func addSectionFeatures(m *Map, f *pe.File) {
	entropies := make([]float64, 0, len(f.Sections))
	rawSizes := make([]uint64, 0, len(f.Sections))
	virtualSizes := make([]uint64, 0, len(f.Sections))
	for _, s := range f.Sections {
		entropies = append(entropies, s.Entropy())
		rawSizes = append(rawSizes, uint64(s.SizeOfRawData))
		virtualSizes = append(virtualSizes, uint64(s.VirtualSize))
	}

	entropy := summarize(entropies)
	raw := summarize(rawSizes)
	virtual := summarize(virtualSizes)

	m.set("SectionsNb", uint64(len(f.Sections)))
	m.set("SectionsMeanEntropy", entropy.Mean)
	m.set("SectionsMinEntropy", entropy.Min)
	m.set("SectionsMaxEntropy", entropy.Max)
	m.set("SectionsMeanRawsize", raw.Mean)
	m.set("SectionsMinRawsize", raw.Min)
	m.set("SectionsMaxRawsize", raw.Max)
	m.set("SectionsMeanVirtualsize", virtual.Mean)
	m.set("SectionsMinVirtualsize", virtual.Min)
	m.set("SectionMaxVirtualsize", virtual.Max)
}

func addImportFeatures(m *Map, f *pe.File, logger hclog.Logger) {
	imports, err := f.Imports()
	if err != nil {
		absorb(logger, "import", err)
		imports = nil
	}

	var symbols uint64
	for _, imp := range imports {
		symbols += uint64(len(imp.Functions))
	}
	m.set("ImportsNbDLL", uint64(len(imports)))
	m.set("ImportsNb", symbols)
	// ordinal imports are not counted separately
	m.set("ImportsNbOrdinal", uint64(0))
}

func addExportFeatures(m *Map, f *pe.File, logger hclog.Logger) {
	var n uint64
	export, err := f.Exports()
	switch {
	case err != nil:
		absorb(logger, "export", err)
	case export != nil:
		n = uint64(len(export.Functions))
	}
	m.set("ExportNb", n)
}

func addResourceFeatures(m *Map, f *pe.File, logger hclog.Logger) *pe.ResourceDirectory {
	rsrc, err := f.Resources()
	if err != nil {
		absorb(logger, "resource", err)
		rsrc = nil
	}

	leaves := rsrc.LanguageLeaves()
	entropies := make([]float64, 0, len(leaves))
	sizes := make([]uint64, 0, len(leaves))
	for _, leaf := range leaves {
		entropies = append(entropies, leaf.Entropy)
		sizes = append(sizes, uint64(leaf.Struct.Size))
	}

	entropy := summarize(entropies)
	size := summarize(sizes)

	m.set("ResourcesNb", uint64(len(leaves)))
	m.set("ResourcesMeanEntropy", entropy.Mean)
	m.set("ResourcesMinEntropy", entropy.Min)
	m.set("ResourcesMaxEntropy", entropy.Max)
	m.set("ResourcesMeanSize", size.Mean)
	m.set("ResourcesMinSize", size.Min)
	m.set("ResourcesMaxSize", size.Max)
	return rsrc
}

func addLoadConfigFeatures(m *Map, f *pe.File, logger hclog.Logger) {
	var size uint64
	lc, err := f.LoadConfig()
	switch {
	case err != nil:
		absorb(logger, "load config", err)
	case lc != nil:
		size = uint64(lc.Size)
	}
	m.set("LoadConfigurationSize", size)
}

func addVersionInfoFeatures(m *Map, f *pe.File, rsrc *pe.ResourceDirectory, logger hclog.Logger) {
	var n uint64
	vi, err := f.VersionInfo(rsrc)
	switch {
	case err != nil:
		absorb(logger, "version info", err)
	case vi != nil:
		n = uint64(vi.Len())
	}
	m.set("VersionInformationSize", n)
}
