package features

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Names lists every feature Extract produces, in output order.
var Names = []string{
	"Machine",
	"SizeOfOptionalHeader",
	"Characteristics",
	"MajorLinkerVersion",
	"MinorLinkerVersion",
	"SizeOfCode",
	"SizeOfInitializedData",
	"SizeOfUninitializedData",
	"AddressOfEntryPoint",
	"BaseOfCode",
	"BaseOfData",
	"ImageBase",
	"SectionAlignment",
	"FileAlignment",
	"MajorOperatingSystemVersion",
	"MinorOperatingSystemVersion",
	"MajorImageVersion",
	"MinorImageVersion",
	"MajorSubsystemVersion",
	"MinorSubsystemVersion",
	"SizeOfImage",
	"SizeOfHeaders",
	"CheckSum",
	"Subsystem",
	"DllCharacteristics",
	"SizeOfStackReserve",
	"SizeOfStackCommit",
	"SizeOfHeapReserve",
	"SizeOfHeapCommit",
	"LoaderFlags",
	"NumberOfRvaAndSizes",
	"SectionsNb",
	"SectionsMeanEntropy",
	"SectionsMinEntropy",
	"SectionsMaxEntropy",
	"SectionsMeanRawsize",
	"SectionsMinRawsize",
	"SectionsMaxRawsize",
	"SectionsMeanVirtualsize",
	"SectionsMinVirtualsize",
	"SectionMaxVirtualsize",
	"ImportsNbDLL",
	"ImportsNb",
	"ImportsNbOrdinal",
	"ExportNb",
	"ResourcesNb",
	"ResourcesMeanEntropy",
	"ResourcesMinEntropy",
	"ResourcesMaxEntropy",
	"ResourcesMeanSize",
	"ResourcesMinSize",
	"ResourcesMaxSize",
	"LoadConfigurationSize",
	"VersionInformationSize",
}

// ReadNames reads a feature ordering, one name per line. Blank lines and
// lines starting with '#' are ignored.
func ReadNames(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading feature names")
	}
	return names, nil
}

func LoadNames(filename string) ([]string, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return ReadNames(fd)
}
