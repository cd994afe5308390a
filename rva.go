package pe

import "github.com/pkg/errors"

// Run maps one section's virtual range onto its raw data.
type Run struct {
	VirtualAddress  uint32
	VirtualEnd      uint64
	PhysicalAddress uint32
}

// RVAResolver maps relative virtual addresses to file offsets using the
// section table. Sections are searched in table order; the first one
// containing the address wins.
type RVAResolver struct {
	Runs []Run
}

func NewRVAResolver(sections []*Section) *RVAResolver {
	r := &RVAResolver{Runs: make([]Run, 0, len(sections))}
	for _, s := range sections {
		r.Runs = append(r.Runs, Run{
			VirtualAddress:  s.VirtualAddress,
			VirtualEnd:      uint64(s.VirtualAddress) + uint64(Max(s.VirtualSize, s.SizeOfRawData)),
			PhysicalAddress: s.PointerToRawData,
		})
	}
	return r
}

func (r *RVAResolver) Resolve(rva uint32) (uint32, error) {
	for _, run := range r.Runs {
		if rva >= run.VirtualAddress && uint64(rva) < run.VirtualEnd {
			return rva - run.VirtualAddress + run.PhysicalAddress, nil
		}
	}
	return 0, errors.Wrapf(ErrUnresolvableRva, "RVA 0x%x", rva)
}
