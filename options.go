package pe

import "github.com/hashicorp/go-hclog"

// Options bounds the work done on a single image. A nil *Options, or any
// zero field, falls back to DefaultOptions.
type Options struct {
	Logger hclog.Logger

	// MaxFileSize is enforced by Open before the file is mapped.
	MaxFileSize int64

	MaxResourceDepth   int
	MaxResourceEntries int
	MaxResourceLeaves  int

	MaxImportDescriptors int
	MaxImportSymbols     int
	MaxExportSymbols     int
}

func DefaultOptions() *Options {
	return &Options{
		Logger:               hclog.NewNullLogger(),
		MaxFileSize:          100 << 20,
		MaxResourceDepth:     8,
		MaxResourceEntries:   0x1000,
		MaxResourceLeaves:    0x4000,
		MaxImportDescriptors: 0x1000,
		MaxImportSymbols:     0x2000,
		MaxExportSymbols:     0x2000,
	}
}

func (o *Options) withDefaults() *Options {
	d := DefaultOptions()
	if o == nil {
		return d
	}
	out := *o
	if out.Logger == nil {
		out.Logger = d.Logger
	}
	if out.MaxFileSize <= 0 {
		out.MaxFileSize = d.MaxFileSize
	}
	if out.MaxResourceDepth <= 0 {
		out.MaxResourceDepth = d.MaxResourceDepth
	}
	if out.MaxResourceEntries <= 0 {
		out.MaxResourceEntries = d.MaxResourceEntries
	}
	if out.MaxResourceLeaves <= 0 {
		out.MaxResourceLeaves = d.MaxResourceLeaves
	}
	if out.MaxImportDescriptors <= 0 {
		out.MaxImportDescriptors = d.MaxImportDescriptors
	}
	if out.MaxImportSymbols <= 0 {
		out.MaxImportSymbols = d.MaxImportSymbols
	}
	if out.MaxExportSymbols <= 0 {
		out.MaxExportSymbols = d.MaxExportSymbols
	}
	return &out
}
