package main

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/h2non/filetype"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	pefile "github.com/wanglei-coder/pefeatures"
	"github.com/wanglei-coder/pefeatures/features"
)

var (
	filename  string
	namesFile string
	maxSize   int64
	strict    bool
	details   bool
	verbose   bool
)

func init() {
	flag.StringVar(&filename, "filename", "", "Please enter the file path")
	flag.StringVar(&namesFile, "names", "", "file listing the feature order expected by the classifier, one name per line")
	flag.Int64Var(&maxSize, "max-size", 100<<20, "reject files larger than this many bytes")
	flag.BoolVar(&strict, "strict", false, "fail when a listed feature is missing instead of using 0")
	flag.BoolVar(&details, "details", false, "include section, resource and overlay details")
	flag.BoolVar(&verbose, "v", false, "log absorbed parse faults to stderr")
}

type Info struct {
	Features *features.Map `json:"features"`
	Vector   []float64     `json:"vector,omitempty"`
	Details  *Details      `json:"details,omitempty"`
}

type Details struct {
	MachineType     uint16
	EntryPoint      uint32
	CompilationTime uint32
	Imports         []string
	Exports         []string
	Overlay         *Overlay
	Sections        []*Section
	ResourceDetails []*ResourceDetail
	VersionInfo     map[string]any `json:",omitempty"`
}

type Overlay struct {
	MD5      string
	FileType string
	Offset   int64
	Size     int64
	Entropy  float64
}

type Section struct {
	Name           string
	MD5            string
	Flags          string
	RawSize        uint32
	VirtualAddress uint32
	VirtualSize    uint32
	Entropy        float64
}

type ResourceDetail struct {
	Type     string
	Lang     uint32
	SubLang  uint32
	FileType string
	SHA256   string
	Size     uint32
	Entropy  float64
}

func getSections(f *pefile.File) []*Section {
	sections := make([]*Section, 0, len(f.Sections))
	for _, s := range f.Sections {
		sections = append(sections, &Section{
			Name:           s.Name,
			MD5:            fmt.Sprintf("%x", md5.Sum(s.Data())),
			Flags:          s.Flags(),
			RawSize:        s.SizeOfRawData,
			VirtualAddress: s.VirtualAddress,
			VirtualSize:    s.VirtualSize,
			Entropy:        s.Entropy(),
		})
	}
	return sections
}

func getResourceDetails(f *pefile.File, rsrc *pefile.ResourceDirectory) []*ResourceDetail {
	resourceDetails := make([]*ResourceDetail, 0)
	if rsrc == nil {
		return resourceDetails
	}
	for _, resourceType := range rsrc.Entries {
		if !resourceType.IsDir() {
			continue
		}
		resourceTypeName := pefile.GetResourceTypeName(resourceType)
		for _, leaf := range resourceType.Directory.Leaves() {
			rd := &ResourceDetail{
				Type:    resourceTypeName,
				Lang:    leaf.Lang,
				SubLang: leaf.SubLang,
				Size:    leaf.Struct.Size,
				Entropy: leaf.Entropy,
			}
			resourceDetails = append(resourceDetails, rd)
			data, err := f.ResourceData(leaf)
			if err != nil {
				continue
			}
			rd.SHA256 = fmt.Sprintf("%x", sha256.Sum256(data))
			rd.FileType = GetFileType(data)
		}
	}
	return resourceDetails
}

func getOverlay(f *pefile.File) *Overlay {
	data := f.Overlay()
	if data == nil {
		return nil
	}

	sum := md5.Sum(data)
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return &Overlay{
		MD5:      hex.EncodeToString(sum[:]),
		FileType: GetFileType(head),
		Offset:   f.OverlayOffset(),
		Size:     int64(len(data)),
		Entropy:  pefile.Entropy(data),
	}
}

func getDetails(f *pefile.File, logger hclog.Logger) *Details {
	d := &Details{
		MachineType:     f.FileHeader.Machine,
		EntryPoint:      f.OptionalHeader.AddressOfEntryPoint,
		CompilationTime: f.FileHeader.TimeDateStamp,
		Sections:        getSections(f),
		Overlay:         getOverlay(f),
	}

	if imports, err := f.Imports(); err != nil {
		logger.Debug("imports", "error", err)
	} else {
		for _, imp := range imports {
			for _, fn := range imp.Functions {
				d.Imports = append(d.Imports, imp.Name+"!"+fn.Name)
			}
		}
	}

	if export, err := f.Exports(); err != nil {
		logger.Debug("exports", "error", err)
	} else if export != nil {
		for _, fn := range export.Functions {
			d.Exports = append(d.Exports, fn.Name)
		}
	}

	rsrc, err := f.Resources()
	if err != nil {
		logger.Debug("resources", "error", err)
	}
	d.ResourceDetails = getResourceDetails(f, rsrc)

	if vi, err := f.VersionInfo(rsrc); err != nil {
		logger.Debug("version info", "error", err)
	} else if vi != nil {
		record := vi.Record()
		d.VersionInfo = make(map[string]any, record.Len())
		for _, k := range record.Keys() {
			d.VersionInfo[k], _ = record.Get(k)
		}
	}
	return d
}

func main() {
	flag.Parse()

	level := hclog.Warn
	if verbose {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "pefeatures",
		Level:  level,
		Output: os.Stderr,
	})

	if filename == "" {
		flag.Usage()
		os.Exit(2)
	}

	info, err := run(logger)
	if err != nil {
		logger.Error("extraction failed", "filename", filename, "error", err)
		os.Exit(1)
	}

	data, _ := json.MarshalIndent(info, "", "    ")
	fmt.Printf("%s\n", data)
}

// run extracts the features of filename. The image is closed before run
// returns, on every path.
func run(logger hclog.Logger) (*Info, error) {
	f, err := pefile.Open(filename, &pefile.Options{Logger: logger, MaxFileSize: maxSize})
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse image")
	}
	defer f.Close()

	info := &Info{Features: features.Extract(f)}

	if namesFile != "" {
		names, err := features.LoadNames(namesFile)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot load feature names from %s", namesFile)
		}
		policy := features.ZeroFill
		if strict {
			policy = features.Strict
		}
		info.Vector, err = features.NewProjector(names, policy, logger).Project(info.Features)
		if err != nil {
			return nil, errors.Wrap(err, "cannot project features")
		}
	}

	if details {
		info.Details = getDetails(f, logger)
	}
	return info, nil
}

func GetFileType(data []byte) string {
	kind, _ := filetype.Match(data)
	if kind == filetype.Unknown {
		return "Data"
	}
	return kind.MIME.Value
}
