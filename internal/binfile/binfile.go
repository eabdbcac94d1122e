// Package binfile opens object files (ELF, Mach-O and PE), extracts their
// DWARF data together with the raw location sections the debug/dwarf package
// does not expose, and detects the target architecture from the header.
package binfile

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/dwarf-type-reader/internal/constants"
	"github.com/coral-mesh/dwarf-type-reader/internal/safe"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/arch"
)

var (
	// ErrUnknownFormat is returned for files that are not ELF, Mach-O or PE.
	ErrUnknownFormat = errors.New("unknown object file format")
	// ErrNoDWARF is returned for object files without debug info.
	ErrNoDWARF = errors.New("no DWARF debug info")
)

// Format is an object container format.
type Format string

const (
	FormatELF   Format = "elf"
	FormatMachO Format = "macho"
	FormatPE    Format = "pe"
)

// File is an opened object file with its debug info.
type File struct {
	Path     string
	Format   Format
	Arch     arch.Arch
	DWARF    *dwarf.Data
	Sections dwarfinfo.Sections

	closer io.Closer
}

// Close releases the underlying object file.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// Units loads the compilation units of the file.
func (f *File) Units(maxEntries int) ([]*dwarfinfo.Unit, error) {
	units, err := dwarfinfo.Load(f.DWARF, f.Sections, dwarfinfo.LoadOptions{MaxEntries: maxEntries})
	if err != nil {
		return nil, fmt.Errorf("failed to load debug info from %s: %w", f.Path, err)
	}
	return units, nil
}

// Detect reads the magic number of path.
func Detect(path string) (Format, error) {
	if _, err := safe.Check(path, &safe.Options{
		MaxSize:       constants.MaxObjectFileSize,
		AllowSymlinks: true,
	}); err != nil {
		return "", err
	}

	fh, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer func() { _ = fh.Close() }()

	var magic [4]byte
	if _, err := io.ReadFull(fh, magic[:]); err != nil {
		return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	return detectMagic(magic[:])
}

func detectMagic(magic []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(magic, []byte(elf.ELFMAG)):
		return FormatELF, nil
	case bytes.HasPrefix(magic, []byte("MZ")):
		return FormatPE, nil
	}

	if len(magic) < 4 {
		return "", ErrUnknownFormat
	}
	switch binary.BigEndian.Uint32(magic) {
	case macho.Magic32, macho.Magic64, macho.MagicFat:
		return FormatMachO, nil
	}
	switch binary.LittleEndian.Uint32(magic) {
	case macho.Magic32, macho.Magic64:
		return FormatMachO, nil
	}
	return "", ErrUnknownFormat
}

// Open opens path and extracts its debug info. Files without debug info fail
// with ErrNoDWARF.
func Open(path string, logger zerolog.Logger) (*File, error) {
	logger = logger.With().Str("component", "binfile").Str("path", path).Logger()

	format, err := Detect(path)
	if err != nil {
		return nil, err
	}

	var f *File
	switch format {
	case FormatELF:
		f, err = openELF(path)
	case FormatMachO:
		f, err = openMachO(path, logger)
	case FormatPE:
		f, err = openPE(path)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Str("format", string(f.Format)).
		Str("arch", f.Arch.String()).
		Bool("loc", f.Sections.Loc != nil).
		Bool("loclists", f.Sections.LocLists != nil).
		Msg("Opened object file")
	return f, nil
}

func openELF(path string) (*File, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file %s: %w", path, err)
	}

	d, err := ef.DWARF()
	if err != nil {
		_ = ef.Close()
		return nil, fmt.Errorf("%s: %w: %v", path, ErrNoDWARF, err)
	}

	a := arch.FromELF(ef.Machine, ef.ByteOrder)
	if !a.Known() {
		switch ef.Class {
		case elf.ELFCLASS32:
			a = a.WithPointerSize(4)
		case elf.ELFCLASS64:
			a = a.WithPointerSize(8)
		}
	}

	section := func(name string) []byte {
		s := ef.Section(name)
		if s == nil {
			return nil
		}
		data, err := s.Data()
		if err != nil {
			return nil
		}
		return data
	}

	return &File{
		Path:   path,
		Format: FormatELF,
		Arch:   a,
		DWARF:  d,
		Sections: dwarfinfo.Sections{
			Info:     section(".debug_info"),
			Loc:      section(".debug_loc"),
			LocLists: section(".debug_loclists"),
			Addr:     section(".debug_addr"),
		},
		closer: ef,
	}, nil
}

func openMachO(path string, logger zerolog.Logger) (*File, error) {
	mf, closer, err := openMachOFile(path, logger)
	if err != nil {
		return nil, err
	}

	d, err := mf.DWARF()
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("%s: %w: %v", path, ErrNoDWARF, err)
	}

	section := func(name string) []byte {
		s := mf.Section(name)
		if s == nil {
			return nil
		}
		data, err := s.Data()
		if err != nil {
			return nil
		}
		return data
	}

	return &File{
		Path:   path,
		Format: FormatMachO,
		Arch:   arch.FromMachO(mf.Cpu),
		DWARF:  d,
		Sections: dwarfinfo.Sections{
			Info:     section("__debug_info"),
			Loc:      section("__debug_loc"),
			LocLists: section("__debug_loclists"),
			Addr:     section("__debug_addr"),
		},
		closer: closer,
	}, nil
}

// openMachOFile opens a thin Mach-O file, or the first slice of a universal
// binary.
func openMachOFile(path string, logger zerolog.Logger) (*macho.File, io.Closer, error) {
	fat, err := macho.OpenFat(path)
	if err == nil {
		if len(fat.Arches) == 0 {
			_ = fat.Close()
			return nil, nil, fmt.Errorf("%s: empty universal binary: %w", path, ErrUnknownFormat)
		}
		if len(fat.Arches) > 1 {
			logger.Warn().
				Int("slices", len(fat.Arches)).
				Str("cpu", fat.Arches[0].Cpu.String()).
				Msg("Universal binary, reading the first slice only")
		}
		return fat.Arches[0].File, fat, nil
	}
	if !errors.Is(err, macho.ErrNotFat) {
		return nil, nil, fmt.Errorf("failed to open Mach-O file %s: %w", path, err)
	}

	mf, err := macho.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Mach-O file %s: %w", path, err)
	}
	return mf, mf, nil
}

func openPE(path string) (*File, error) {
	pf, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PE file %s: %w", path, err)
	}

	d, err := pf.DWARF()
	if err != nil {
		_ = pf.Close()
		return nil, fmt.Errorf("%s: %w: %v", path, ErrNoDWARF, err)
	}

	section := func(name string) []byte {
		s := pf.Section(name)
		if s == nil {
			return nil
		}
		data, err := s.Data()
		if err != nil {
			return nil
		}
		// Raw section data is padded to the file alignment.
		if s.VirtualSize != 0 && s.VirtualSize < uint32(len(data)) {
			data = data[:s.VirtualSize]
		}
		return data
	}

	return &File{
		Path:   path,
		Format: FormatPE,
		Arch:   arch.FromPE(pf.Machine),
		DWARF:  d,
		Sections: dwarfinfo.Sections{
			Info:     section(".debug_info"),
			Loc:      section(".debug_loc"),
			LocLists: section(".debug_loclists"),
			Addr:     section(".debug_addr"),
		},
		closer: pf,
	}, nil
}
