package features

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	pe "github.com/wanglei-coder/pefeatures"
	"github.com/wanglei-coder/pefeatures/internal/petest"
)

func randomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	r := rand.New(rand.NewSource(seed))
	_, _ = r.Read(b)
	return b
}

// fullImage has every directory the extractor reads, each in its own
// section.
func fullImage(is64 bool) []byte {
	b := petest.New(is64)
	b.AddSection(".text", 0x1000, randomBytes(0x800, 1))

	imports := petest.ImportTable(0x2000, is64, []petest.ImportDLL{
		{Name: "KERNEL32.dll", Functions: []string{"GetProcAddress", "LoadLibraryA", "VirtualAlloc"}},
		{Name: "ADVAPI32.dll", Functions: []string{"RegOpenKeyExA"}, Ordinals: []uint16{17}},
	})
	b.AddSection(".idata", 0x2000, imports)
	b.SetDirectory(petest.DirImport, 0x2000, 3*20)

	exports := petest.ExportTable(0x3000, "sample.dll", []string{"Install", "Run"})
	b.AddSection(".edata", 0x3000, exports)
	b.SetDirectory(petest.DirExport, 0x3000, uint32(len(exports)))

	version := petest.VersionInfo{
		Strings: []petest.VersionString{
			{Key: "CompanyName", Value: "Contoso"},
			{Key: "ProductName", Value: "Sample"},
		},
		Translations: []uint32{0x04b00409},
	}.Bytes()
	tree := petest.ResourceTree(0x4000, []*petest.ResourceNode{
		{ID: 3, Children: []*petest.ResourceNode{
			{ID: 1, Children: []*petest.ResourceNode{{ID: 0x409, Data: randomBytes(0x200, 2)}}},
			{ID: 2, Children: []*petest.ResourceNode{{ID: 0x409, Data: make([]byte, 0x40)}}},
		}},
		{ID: 16, Children: []*petest.ResourceNode{
			{ID: 1, Children: []*petest.ResourceNode{{ID: 0x409, Data: version}}},
		}},
	})
	b.AddSection(".rsrc", 0x4000, tree)
	b.SetDirectory(petest.DirResource, 0x4000, uint32(len(tree)))

	b.AddSection(".rdata", 0x5000, petest.LoadConfig(0xa0))
	b.SetDirectory(petest.DirLoadConfig, 0x5000, 0xa0)

	return b.Bytes()
}

func TestExtract_MinimalImage(t *testing.T) {
	data := petest.New(false).AddSection(".text", 0x1000, make([]byte, 4096)).Bytes()

	m, err := ExtractBytes(data, nil)
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}

	tests := []struct {
		name string
		want any
	}{
		{name: "SectionsNb", want: uint64(1)},
		{name: "SectionsMeanEntropy", want: float64(0)},
		{name: "SectionsMinRawsize", want: uint64(4096)},
		{name: "SectionMaxVirtualsize", want: uint64(4096)},
		{name: "ImportsNbDLL", want: uint64(0)},
		{name: "ImportsNb", want: uint64(0)},
		{name: "ImportsNbOrdinal", want: uint64(0)},
		{name: "ExportNb", want: uint64(0)},
		{name: "ResourcesNb", want: uint64(0)},
		{name: "ResourcesMeanEntropy", want: float64(0)},
		{name: "ResourcesMinEntropy", want: float64(0)},
		{name: "ResourcesMaxEntropy", want: float64(0)},
		{name: "ResourcesMeanSize", want: float64(0)},
		{name: "ResourcesMinSize", want: uint64(0)},
		{name: "ResourcesMaxSize", want: uint64(0)},
		{name: "LoadConfigurationSize", want: uint64(0)},
		{name: "VersionInformationSize", want: uint64(0)},
		{name: "Machine", want: uint64(0x14c)},
		{name: "ImageBase", want: uint64(0x400000)},
		{name: "FileAlignment", want: uint64(0x200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Get(tt.name)
			if !ok {
				t.Fatalf("%s missing", tt.name)
			}
			if got != tt.want {
				t.Errorf("%s = %v (%T), want %v (%T)", tt.name, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestExtract_Names(t *testing.T) {
	m, err := ExtractBytes(fullImage(false), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := m.Names()
	if len(got) != len(Names) {
		t.Fatalf("len(Names()) = %d, want %d", len(got), len(Names))
	}
	for i := range Names {
		if got[i] != Names[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], Names[i])
		}
	}
}

func TestExtract_FullImage(t *testing.T) {
	tests := []struct {
		name string
		is64 bool
	}{
		{name: "PE32", is64: false},
		{name: "PE32+", is64: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ExtractBytes(fullImage(tt.is64), nil)
			if err != nil {
				t.Fatal(err)
			}

			want := map[string]uint64{
				"SectionsNb":             5,
				"ImportsNbDLL":           2,
				"ImportsNb":              5,
				"ImportsNbOrdinal":       0,
				"ExportNb":               2,
				"ResourcesNb":            3,
				"ResourcesMaxSize":       0x200,
				"ResourcesMinSize":       0x40,
				"LoadConfigurationSize":  0xa0,
				"VersionInformationSize": 2 + 1 + 7,
			}
			for name, w := range want {
				if got, ok := m.Uint(name); !ok || got != w {
					t.Errorf("%s = %v, want %v", name, got, w)
				}
			}

			if base, _ := m.Uint("BaseOfData"); tt.is64 && base != 0 {
				t.Errorf("PE32+ BaseOfData = 0x%x, want 0", base)
			}
			if e, _ := m.Float("ResourcesMaxEntropy"); e <= 6 {
				t.Errorf("ResourcesMaxEntropy = %v, want random data entropy", e)
			}
			if e, _ := m.Float("ResourcesMinEntropy"); e != 0 {
				t.Errorf("ResourcesMinEntropy = %v, want 0", e)
			}
		})
	}
}

func TestExtract_StatisticsOrdered(t *testing.T) {
	m, err := ExtractBytes(fullImage(false), nil)
	if err != nil {
		t.Fatal(err)
	}

	triples := [][3]string{
		{"SectionsMinEntropy", "SectionsMeanEntropy", "SectionsMaxEntropy"},
		{"SectionsMinRawsize", "SectionsMeanRawsize", "SectionsMaxRawsize"},
		{"SectionsMinVirtualsize", "SectionsMeanVirtualsize", "SectionMaxVirtualsize"},
		{"ResourcesMinEntropy", "ResourcesMeanEntropy", "ResourcesMaxEntropy"},
		{"ResourcesMinSize", "ResourcesMeanSize", "ResourcesMaxSize"},
	}
	for _, tr := range triples {
		lo, _ := m.Float(tr[0])
		mean, _ := m.Float(tr[1])
		hi, _ := m.Float(tr[2])
		if !(lo <= mean && mean <= hi) {
			t.Errorf("%s=%v %s=%v %s=%v not ordered", tr[0], lo, tr[1], mean, tr[2], hi)
		}
	}
}

func TestExtract_Idempotent(t *testing.T) {
	data := fullImage(true)
	first, err := ExtractBytes(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ExtractBytes(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Equal(second) {
		t.Error("extracting the same buffer twice gave different maps")
	}

	a, _ := first.MarshalJSON()
	b, _ := second.MarshalJSON()
	if string(a) != string(b) {
		t.Errorf("JSON differs:\n%s\n%s", a, b)
	}
}

func TestExtract_DamagedDirectories(t *testing.T) {
	b := petest.New(false)
	b.AddSection(".text", 0x1000, make([]byte, 0x100))
	b.SetDirectory(petest.DirImport, 0x9000, 40)
	b.SetDirectory(petest.DirExport, 0x9100, 40)
	b.SetDirectory(petest.DirResource, 0x9200, 40)
	b.SetDirectory(petest.DirLoadConfig, 0x9300, 40)

	m, err := ExtractBytes(b.Bytes(), nil)
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	for _, name := range []string{"ImportsNbDLL", "ImportsNb", "ExportNb", "ResourcesNb", "LoadConfigurationSize", "VersionInformationSize"} {
		if v, _ := m.Uint(name); v != 0 {
			t.Errorf("%s = %d, want 0", name, v)
		}
	}
	if m.Len() != len(Names) {
		t.Errorf("Len() = %d, want %d", m.Len(), len(Names))
	}
}

func TestExtract_Fatal(t *testing.T) {
	valid := petest.New(false).AddSection(".text", 0x1000, make([]byte, 0x10)).Bytes()
	noSections := append([]byte(nil), valid...)
	noSections[0x46], noSections[0x47] = 0, 0
	notPE := append([]byte(nil), valid...)
	notPE[0] = 'Z'

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "zero sections", data: noSections, want: pe.ErrMalformedImage},
		{name: "bad magic", data: notPE, want: pe.ErrMalformedHeader},
		{name: "empty", data: nil, want: pe.ErrInvalidPESize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ExtractBytes(tt.data, nil)
			if m != nil || !errors.Is(err, tt.want) {
				t.Errorf("ExtractBytes() = %v, %v, want %v", m, err, tt.want)
			}
		})
	}
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.exe")
	data := fullImage(false)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	fromFile, err := ExtractFile(path, nil)
	if err != nil {
		t.Fatalf("ExtractFile() error = %v", err)
	}
	fromBytes, err := ExtractBytes(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !fromFile.Equal(fromBytes) {
		t.Error("ExtractFile and ExtractBytes disagree")
	}

	if _, err := ExtractFile(path, &pe.Options{MaxFileSize: 16}); !errors.Is(err, pe.ErrFileTooLarge) {
		t.Errorf("ExtractFile() error = %v, want ErrFileTooLarge", err)
	}
}

func TestExtract_ResourcesOutsideLanguageLevel(t *testing.T) {
	tree := petest.ResourceTree(0x2000, []*petest.ResourceNode{
		{ID: 3, Data: randomBytes(0x40, 3)},
		{ID: 4, Children: []*petest.ResourceNode{{ID: 1, Data: randomBytes(0x40, 4)}}},
		{ID: 5, Children: []*petest.ResourceNode{
			{ID: 1, Children: []*petest.ResourceNode{
				{ID: 0x409, Children: []*petest.ResourceNode{{ID: 0, Data: randomBytes(0x40, 5)}}},
			}},
		}},
	})
	b := petest.New(false)
	b.AddSection(".text", 0x1000, make([]byte, 0x10))
	b.AddSection(".rsrc", 0x2000, tree)
	b.SetDirectory(petest.DirResource, 0x2000, uint32(len(tree)))

	m, err := ExtractBytes(b.Bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"ResourcesNb", "ResourcesMinSize", "ResourcesMaxSize"} {
		if v, _ := m.Uint(name); v != 0 {
			t.Errorf("%s = %d, want 0", name, v)
		}
	}
	if e, _ := m.Float("ResourcesMaxEntropy"); e != 0 {
		t.Errorf("ResourcesMaxEntropy = %v, want 0", e)
	}
}

func TestExtract_InvalidImportName(t *testing.T) {
	imports := petest.ImportTable(0x2000, false, []petest.ImportDLL{
		{Name: "KERNEL32.dll", Functions: []string{"ExitProcess"}},
		{Name: "bad\x01name.dll", Functions: []string{"Foo", "Bar"}},
	})
	b := petest.New(false)
	b.AddSection(".text", 0x1000, make([]byte, 0x10))
	b.AddSection(".idata", 0x2000, imports)
	b.SetDirectory(petest.DirImport, 0x2000, 3*20)

	m, err := ExtractBytes(b.Bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Uint("ImportsNbDLL"); v != 2 {
		t.Errorf("ImportsNbDLL = %d, want 2", v)
	}
	if v, _ := m.Uint("ImportsNb"); v != 3 {
		t.Errorf("ImportsNb = %d, want 3", v)
	}
}
