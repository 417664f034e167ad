package flash

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, PageSize)
}

func TestMemoryStartsErased(t *testing.T) {
	m := NewSector()
	assert.Equal(t, bytes.Repeat([]byte{Erased}, SectorSize), m.Bytes())
}

func TestProgramOnlyClearsBits(t *testing.T) {
	m := NewSector()

	require.NoError(t, m.ProgramPage(0, page(0x0F)))
	require.NoError(t, m.ProgramPage(0, page(0xF3)))

	buf := make([]byte, 1)
	_, err := m.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), buf[0], "0->1 transitions must not happen without an erase")
}

func TestEraseResetsToOnes(t *testing.T) {
	m := NewSector()
	require.NoError(t, m.ProgramPage(PageSize, page(0)))
	require.NoError(t, m.EraseBlock())

	assert.Equal(t, bytes.Repeat([]byte{Erased}, SectorSize), m.Bytes())
	assert.Equal(t, Stats{Erases: 1, Programs: 1}, m.Stats())
}

func TestProgramRejectsBadRanges(t *testing.T) {
	m := NewSector()
	assert.ErrorIs(t, m.ProgramPage(3, page(0)), ErrUnaligned)
	assert.ErrorIs(t, m.ProgramPage(0, []byte{1, 2, 3}), ErrUnaligned)
	assert.ErrorIs(t, m.ProgramPage(SectorSize, page(0)), ErrOutOfRange)
	assert.ErrorIs(t, m.ProgramPage(-PageSize, page(0)), ErrOutOfRange)
}

func TestFilePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")

	f, err := OpenFile(path, SectorSize, PageSize)
	require.NoError(t, err)
	require.NoError(t, f.ProgramPage(PageSize, page(0x42)))
	require.NoError(t, f.Close())

	f, err = OpenFile(path, SectorSize, PageSize)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 2)
	_, err = f.ReadAt(buf, PageSize-1)
	require.NoError(t, err)
	assert.Equal(t, []byte{Erased, 0x42}, buf)
}

func TestFileRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0644))

	_, err := OpenFile(path, SectorSize, PageSize)
	assert.ErrorIs(t, err, ErrImageSize)
}

func TestFileProgramAndErase(t *testing.T) {
	f, err := OpenFile(filepath.Join(t.TempDir(), "flash.bin"), SectorSize, PageSize)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.ProgramPage(0, page(0xF0)))
	require.NoError(t, f.ProgramPage(0, page(0x3F)))

	buf := make([]byte, 1)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0x30), buf[0])

	require.NoError(t, f.EraseBlock())
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, Erased, buf[0])
	assert.Equal(t, Stats{Erases: 1, Programs: 2}, f.Stats())
}

func TestMutexSerializes(t *testing.T) {
	var irq Mutex
	s := irq.Disable()
	done := make(chan struct{})
	go func() {
		st := irq.Disable()
		irq.Restore(st)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second Disable returned while interrupts were off")
	default:
	}
	irq.Restore(s)
	<-done
}
