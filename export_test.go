package pe

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/wanglei-coder/pefeatures/internal/petest"
)

func TestFile_Exports(t *testing.T) {
	const base = 0x3000
	names := []string{"DllMain", "alpha", "beta"}
	table := petest.ExportTable(base, "test.dll", names)

	b := petest.New(false)
	b.AddSection(".text", 0x1000, make([]byte, 0x10))
	b.AddSection(".edata", base, table)
	b.SetDirectory(petest.DirExport, base, uint32(len(table)))
	f := mustParse(t, b.Bytes(), nil)

	export, err := f.Exports()
	if err != nil {
		t.Fatalf("Exports() error = %v", err)
	}
	if export.Name != "test.dll" {
		t.Errorf("Name = %q", export.Name)
	}
	if len(export.Functions) != len(names) {
		t.Fatalf("len(Functions) = %d, want %d", len(export.Functions), len(names))
	}
	for i, fn := range export.Functions {
		if fn.Name != names[i] || fn.Ordinal != uint32(i+1) {
			t.Errorf("Functions[%d] = %+v", i, fn)
		}
	}

	capped := mustParse(t, b.Bytes(), &Options{MaxExportSymbols: 2})
	export, err = capped.Exports()
	if err != nil {
		t.Fatal(err)
	}
	if len(export.Functions) != 2 {
		t.Errorf("capped len(Functions) = %d, want 2", len(export.Functions))
	}
}

func TestFile_ExportsFaults(t *testing.T) {
	tests := []struct {
		name    string
		dir     [2]uint32
		wantNil bool
		wantErr error
	}{
		{name: "absent", wantNil: true},
		{name: "unresolvable", dir: [2]uint32{0x9000, 40}, wantErr: ErrUnresolvableRva},
		{name: "truncated", dir: [2]uint32{0x1000 + 0x10 - 8, 40}, wantErr: ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := petest.New(false).AddSection(".text", 0x1000, make([]byte, 0x10))
			b.SetDirectory(petest.DirExport, tt.dir[0], tt.dir[1])
			data := b.Bytes()
			// end the file right after the section data
			data = data[:b.RawOffset(0)+0x10]

			f := mustParse(t, data, nil)
			export, err := f.Exports()
			if tt.wantNil {
				if export != nil || err != nil {
					t.Errorf("Exports() = %v, %v, want nil, nil", export, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Exports() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
