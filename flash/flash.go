// Package flash models the reserved block of NOR flash the device keeps its
// settings in.
//
// NOR flash can only clear bits (1->0) when programming. Setting a bit back to
// 1 requires erasing the whole block, which resets every byte to Erased and
// wears the cells. Programming happens a page at a time.
package flash

import (
	"errors"
	"io"
)

const (
	// SectorSize is the erase unit: the whole reserved region.
	SectorSize = 4096
	// PageSize is the program unit.
	PageSize = 256
	// Erased is what every byte reads as after an erase.
	Erased byte = 0xFF
)

var (
	ErrOutOfRange = errors.New("flash: offset out of range")
	ErrUnaligned  = errors.New("flash: program not page aligned")
	ErrImageSize  = errors.New("flash: image size mismatch")
)

// Region is one erase block of flash. Offsets are relative to the start of
// the block.
type Region interface {
	io.ReaderAt

	// Size is the block size in bytes.
	Size() int

	// PageSize is the program unit in bytes.
	PageSize() int

	// EraseBlock resets every byte of the region to Erased.
	EraseBlock() error

	// ProgramPage programs whole pages starting at a page-aligned offset.
	// Bits can only go from 1 to 0.
	ProgramPage(off int, data []byte) error
}

// Stats counts wear-relevant operations.
type Stats struct {
	Erases   int
	Programs int
}

// program applies NOR semantics: a programmed bit can only clear.
func program(dst, src []byte) {
	for i := range src {
		dst[i] &= src[i]
	}
}

func checkProgram(size, pageSize, off int, data []byte) error {
	if off < 0 || off+len(data) > size {
		return ErrOutOfRange
	}
	if off%pageSize != 0 || len(data)%pageSize != 0 || len(data) == 0 {
		return ErrUnaligned
	}
	return nil
}

func erased(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = Erased
	}
	return b
}
