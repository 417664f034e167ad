package flash

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// File is a flash region kept in an image file, so the host build keeps its
// settings across restarts the way the real device keeps them across power
// cycles.
type File struct {
	mu       sync.Mutex
	f        *os.File
	size     int
	pageSize int
	stats    Stats
}

// OpenFile opens or creates a flash image. A new image starts erased. An
// existing image must have exactly size bytes.
func OpenFile(path string, size, pageSize int) (*File, error) {
	if pageSize <= 0 || size <= 0 || size%pageSize != 0 {
		return nil, fmt.Errorf("open flash image %s: bad geometry %d/%d", path, size, pageSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open flash image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat flash image: %w", err)
	}

	switch info.Size() {
	case 0:
		if _, err := f.WriteAt(erased(size), 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("initialize flash image: %w", err)
		}
	case int64(size):
	default:
		f.Close()
		return nil, fmt.Errorf("%s is %d bytes, want %d: %w", path, info.Size(), size, ErrImageSize)
	}

	return &File{f: f, size: size, pageSize: pageSize}, nil
}

func (r *File) Size() int     { return r.size }
func (r *File) PageSize() int { return r.pageSize }

func (r *File) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if off < 0 || off > int64(r.size) {
		return 0, ErrOutOfRange
	}
	if rest := int64(r.size) - off; int64(len(p)) > rest {
		n, err := r.f.ReadAt(p[:rest], off)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	return r.f.ReadAt(p, off)
}

func (r *File) EraseBlock() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.f.WriteAt(erased(r.size), 0); err != nil {
		return fmt.Errorf("erase: %w", err)
	}
	r.stats.Erases++
	return r.f.Sync()
}

func (r *File) ProgramPage(off int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkProgram(r.size, r.pageSize, off, data); err != nil {
		return err
	}

	cur := make([]byte, len(data))
	if _, err := r.f.ReadAt(cur, int64(off)); err != nil {
		return fmt.Errorf("program: read back: %w", err)
	}
	program(cur, data)
	if _, err := r.f.WriteAt(cur, int64(off)); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	r.stats.Programs += len(data) / r.pageSize
	return r.f.Sync()
}

// Stats returns the erase/program counters for this session.
func (r *File) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *File) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
