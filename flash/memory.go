package flash

import (
	"io"
	"sync"
)

// Memory is an in-RAM flash region. It behaves like the real part: erase
// sets all ones, programming only clears bits.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	pageSize int
	stats    Stats
}

// NewMemory creates an erased region of size bytes split into pageSize pages.
func NewMemory(size, pageSize int) *Memory {
	if pageSize <= 0 || size <= 0 || size%pageSize != 0 {
		panic("flash: region size must be a positive multiple of the page size")
	}
	return &Memory{
		data:     erased(size),
		pageSize: pageSize,
	}
}

// NewSector creates an erased region with the device geometry.
func NewSector() *Memory {
	return NewMemory(SectorSize, PageSize)
}

func (m *Memory) Size() int     { return len(m.data) }
func (m *Memory) PageSize() int { return m.pageSize }

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off > int64(len(m.data)) {
		return 0, ErrOutOfRange
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *Memory) EraseBlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.data {
		m.data[i] = Erased
	}
	m.stats.Erases++
	return nil
}

func (m *Memory) ProgramPage(off int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkProgram(len(m.data), m.pageSize, off, data); err != nil {
		return err
	}
	program(m.data[off:off+len(data)], data)
	m.stats.Programs += len(data) / m.pageSize
	return nil
}

// Stats returns the erase/program counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Bytes returns a copy of the region contents.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
