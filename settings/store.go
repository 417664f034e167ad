// Package settings keeps the device settings in one reserved flash block,
// treating it like a small EEPROM.
//
// Each save appends a RecordSize record after the last one. The newest record
// is the one just before the first erased byte. The block is only erased when
// no page has room left, so a typical save is a single page program and the
// block wears once per few thousand saves instead of once per save.
package settings

import (
	"fmt"
	"sync"

	"go-stompbox/debug"
	"go-stompbox/flash"
)

// Store reads and appends settings records in a flash region.
type Store struct {
	region flash.Region
	irq    flash.Interrupts

	// used is the record count, valid until the next Write.
	usageMu    sync.Mutex
	used       int
	usageKnown bool
}

// NewStore creates a store over region. irq is held for every flash access.
func NewStore(region flash.Region, irq flash.Interrupts) *Store {
	return &Store{region: region, irq: irq}
}

// Read returns the most recent record, or the zero Settings if nothing was
// ever saved. It never fails: unreadable flash reads as "never saved".
func (s *Store) Read() Settings {
	st := s.irq.Disable()
	defer s.irq.Restore(st)

	data, err := s.snapshot()
	if err != nil {
		debug.Log("flash", "read failed, using defaults: %v", err)
		return Settings{}
	}

	end := s.logEnd(data)
	if end < RecordSize {
		debug.Log("flash", "no saved settings (end=%d)", end)
		return Settings{}
	}

	rec := decode(data[end-RecordSize : end])
	debug.Log("flash", "read settings at %d: %v", end-RecordSize, rec)
	return rec
}

// Write appends rec to the log. When the region is full it is erased first
// and rec becomes the only record. The erase and program run with
// interrupts disabled.
func (s *Store) Write(rec Settings) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	// runs after Restore, so usageMu is never taken inside the guard
	defer s.forgetUsage()
	st := s.irq.Disable()
	defer s.irq.Restore(st)

	data, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	pageSize := s.region.PageSize()
	for base := 0; base < len(data); base += pageSize {
		scratch := append([]byte(nil), data[base:base+pageSize]...)

		off := firstErased(scratch)
		if off < 0 {
			continue
		}

		if off+RecordSize > pageSize || !allErased(scratch[off:off+RecordSize]) {
			// Too little room left: seal the tail so Read doesn't stop here.
			zero(scratch[off:])
			debug.Log("flash", "sealing page=%d at offset=%d", base/pageSize, off)
			if err := s.region.ProgramPage(base, scratch); err != nil {
				return fmt.Errorf("seal page %d: %w", base/pageSize, err)
			}
			continue
		}

		enc := rec.encode()
		copy(scratch[off:], enc[:])
		if pageSize-(off+RecordSize) < RecordSize {
			zero(scratch[off+RecordSize:])
		}

		debug.Log("flash", "writing page=%d offset=%d %v", base/pageSize, off, rec)
		if err := s.region.ProgramPage(base, scratch); err != nil {
			return fmt.Errorf("program page %d: %w", base/pageSize, err)
		}
		return nil
	}

	debug.Log("flash", "region full, erasing")
	if err := s.region.EraseBlock(); err != nil {
		return fmt.Errorf("erase settings region: %w", err)
	}

	scratch := make([]byte, pageSize)
	for i := range scratch {
		scratch[i] = flash.Erased
	}
	enc := rec.encode()
	copy(scratch, enc[:])
	if err := s.region.ProgramPage(0, scratch); err != nil {
		return fmt.Errorf("program page 0 after erase: %w", err)
	}
	return nil
}

// History returns every record still in the region, oldest first.
func (s *Store) History() []Settings {
	st := s.irq.Disable()
	defer s.irq.Restore(st)

	data, err := s.snapshot()
	if err != nil {
		debug.Log("flash", "history read failed: %v", err)
		return nil
	}

	var out []Settings
	pageSize := s.region.PageSize()
	for base := 0; base < len(data); base += pageSize {
		pg := data[base : base+pageSize]
		for off := 0; off+RecordSize <= pageSize; off += RecordSize {
			b := pg[off : off+RecordSize]
			if firstErased(b) >= 0 {
				return out
			}
			out = append(out, decode(b))
		}
	}
	return out
}

// Usage reports how many records the region holds and how many fit before
// the next erase. The count is read from flash once per Write.
func (s *Store) Usage() (used, capacity int) {
	pageSize := s.region.PageSize()
	capacity = (s.region.Size() / pageSize) * (pageSize / RecordSize)

	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	if !s.usageKnown {
		s.used = len(s.History())
		s.usageKnown = true
	}
	return s.used, capacity
}

func (s *Store) forgetUsage() {
	s.usageMu.Lock()
	s.usageKnown = false
	s.usageMu.Unlock()
}

func (s *Store) snapshot() ([]byte, error) {
	data := make([]byte, s.region.Size())
	if _, err := s.region.ReadAt(data, 0); err != nil {
		return nil, err
	}
	return data, nil
}

// logEnd returns the offset one past the newest record. The scan is bounded
// by the region; a region with no erased byte left ends at its last byte.
// When the end falls on a page boundary the previous page's filler tail is
// skipped.
func (s *Store) logEnd(data []byte) int {
	end := firstErased(data)
	if end < 0 {
		end = len(data)
	}
	pageSize := s.region.PageSize()
	if end > 0 && end%pageSize == 0 {
		end -= pageSize % RecordSize
	}
	return end
}

func firstErased(b []byte) int {
	for i := 0; i < len(b); i++ {
		if b[i] == flash.Erased {
			return i
		}
	}
	return -1
}

func allErased(b []byte) bool {
	for _, v := range b {
		if v != flash.Erased {
			return false
		}
	}
	return true
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
