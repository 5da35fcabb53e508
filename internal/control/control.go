// Package control shares a tiny memory-mapped block between this
// process and external editors of the same stage file. A writer bumps
// the generation after changing the file on disk; hosts poll the
// generation and reload when it moves.
package control

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ControlSize = 4096       // 1 page
	Magic       = 0x41445355 // 'USDA'
)

// Block is the layout of the control file. External tools map the same
// struct, so the layout is fixed.
type Block struct {
	Magic      uint32
	Version    uint32
	Generation uint64 // Atomic
	StagePath  [256]byte
	Padding    [ControlSize - 272]byte // Pad to 4096 bytes
}

// Controller manages the memory-mapped control file.
type Controller struct {
	path string
	file *os.File
	data []byte
	ptr  *Block
}

// OpenOrCreate opens or creates a control file at the given path.
func OpenOrCreate(path string) (*Controller, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open control file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	if info.Size() < ControlSize {
		if err := f.Truncate(ControlSize); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("truncate: %w", err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, ControlSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap: %w", err)
	}

	ptr := (*Block)(unsafe.Pointer(&data[0]))

	// Initialize if new
	if ptr.Magic == 0 {
		ptr.Magic = Magic
		ptr.Version = 1
	} else if ptr.Magic != Magic {
		badMagic := ptr.Magic
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("invalid magic: %x", badMagic)
	}

	return &Controller{
		path: path,
		file: f,
		data: data,
		ptr:  ptr,
	}, nil
}

// Generation returns the current generation atomically.
func (c *Controller) Generation() uint64 {
	return atomic.LoadUint64(&c.ptr.Generation)
}

// Bump advances the generation after an edit of the stage file and
// returns the new value.
func (c *Controller) Bump() uint64 {
	return atomic.AddUint64(&c.ptr.Generation, 1)
}

// StagePath returns the stage file the block refers to.
func (c *Controller) StagePath() string {
	// Simple null-terminated string read
	b := c.ptr.StagePath[:]
	for i, v := range b {
		if v == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// SetStage records the stage file the block refers to.
func (c *Controller) SetStage(path string) error {
	if len(path) >= len(c.ptr.StagePath) {
		return fmt.Errorf("stage path too long (max %d)", len(c.ptr.StagePath)-1)
	}

	copy(c.ptr.StagePath[:], path)
	c.ptr.StagePath[len(path)] = 0 // Null terminate
	return nil
}

// Close unmaps and closes the control file.
func (c *Controller) Close() error {
	if err := unix.Munmap(c.data); err != nil {
		return err
	}
	return c.file.Close()
}
