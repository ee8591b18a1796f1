package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

type diskFile struct {
	name string
	f    afero.File
}

// DiskManager maps (fileID, pageID) -> byte offset inside one file of dir.
// Page N lives at offset N*PageSize.
type DiskManager struct {
	fs  afero.Fs
	dir string

	// openMu serializes open/close; page I/O only touches files.
	openMu sync.Mutex
	names  map[string]FileID
	nextID FileID
	closed bool

	files *xsync.MapOf[FileID, *diskFile]
}

func NewDiskManager(fs afero.Fs, dir string) *DiskManager {
	return &DiskManager{
		fs:    fs,
		dir:   dir,
		names: make(map[string]FileID),
		files: xsync.NewMapOf[FileID, *diskFile](),
	}
}

// NewOSDiskManager is a DiskManager over the local filesystem.
func NewOSDiskManager(dir string) *DiskManager {
	return NewDiskManager(afero.NewOsFs(), dir)
}

func (dm *DiskManager) path(name string) string {
	return filepath.Join(dm.dir, name)
}

// OpenFile opens (creating if needed) a file under dir and returns its id.
// Opening an already open name returns the same id.
func (dm *DiskManager) OpenFile(name string) (FileID, error) {
	dm.openMu.Lock()
	defer dm.openMu.Unlock()

	if dm.closed {
		return InvalidFileID, ErrDiskClosed
	}
	if id, ok := dm.names[name]; ok {
		return id, nil
	}
	if err := dm.fs.MkdirAll(dm.dir, FileMode0755); err != nil {
		return InvalidFileID, err
	}
	// RDWR | CREATE (no truncate)
	f, err := dm.fs.OpenFile(dm.path(name), os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return InvalidFileID, fmt.Errorf("open %s: %w", name, err)
	}

	id := dm.nextID
	dm.nextID++
	dm.names[name] = id
	dm.files.Store(id, &diskFile{name: name, f: f})

	slog.Debug("disk: open file", "name", name, "file_id", id)
	return id, nil
}

// CloseFile closes an open file. Pages of the file must already be flushed.
func (dm *DiskManager) CloseFile(fid FileID) error {
	dm.openMu.Lock()
	defer dm.openMu.Unlock()

	df, ok := dm.files.LoadAndDelete(fid)
	if !ok {
		return ErrFileNotOpen
	}
	delete(dm.names, df.name)
	slog.Debug("disk: close file", "name", df.name, "file_id", fid)
	return df.f.Close()
}

// DestroyFile closes (if open) and removes the file from disk. A missing
// file is not an error.
func (dm *DiskManager) DestroyFile(name string) error {
	dm.openMu.Lock()
	defer dm.openMu.Unlock()

	var err error
	if id, ok := dm.names[name]; ok {
		if df, ok := dm.files.LoadAndDelete(id); ok {
			err = df.f.Close()
		}
		delete(dm.names, name)
	}
	if rmErr := dm.fs.Remove(dm.path(name)); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = multierr.Append(err, rmErr)
	}
	return err
}

func (dm *DiskManager) FileName(fid FileID) (string, error) {
	df, ok := dm.files.Load(fid)
	if !ok {
		return "", ErrFileNotOpen
	}
	return df.name, nil
}

// ReadPage reads exactly one page (PageSize bytes) into dst.
// If the underlying file is smaller than the requested offset+PageSize,
// the remainder is zero-filled. This allows "sparse" pages that are
// lazily initialized by higher layers.
func (dm *DiskManager) ReadPage(fid FileID, pid PageID, dst []byte) error {
	if len(dst) != PageSize {
		return ErrWrongSize
	}
	df, ok := dm.files.Load(fid)
	if !ok {
		return fmt.Errorf("%w: file %d", ErrFileNotOpen, fid)
	}

	// os.File reports io.EOF past the end, afero's MemMapFs io.ErrUnexpectedEOF.
	n, err := df.f.ReadAt(dst, int64(pid)*PageSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	clear(dst[n:])

	if !verifyChecksum(dst) {
		return fmt.Errorf("%w: file %s page %d", ErrChecksumMismatch, df.name, pid)
	}
	return nil
}

// WritePage seals the page checksum into src and writes it at the location
// computed from pid.
func (dm *DiskManager) WritePage(fid FileID, pid PageID, src []byte) error {
	if len(src) != PageSize {
		return ErrWrongSize
	}
	df, ok := dm.files.Load(fid)
	if !ok {
		return fmt.Errorf("%w: file %d", ErrFileNotOpen, fid)
	}

	sealChecksum(src)
	n, err := df.f.WriteAt(src, int64(pid)*PageSize)
	if err != nil {
		return err
	}
	if n != PageSize {
		return io.ErrShortWrite
	}
	return nil
}

// NumPages returns how many whole pages the file currently holds on disk.
func (dm *DiskManager) NumPages(fid FileID) (int, error) {
	df, ok := dm.files.Load(fid)
	if !ok {
		return 0, ErrFileNotOpen
	}
	info, err := df.f.Stat()
	if err != nil {
		return 0, err
	}
	return int(info.Size() / PageSize), nil
}

// Close closes every open file.
func (dm *DiskManager) Close() error {
	dm.openMu.Lock()
	defer dm.openMu.Unlock()

	var err error
	dm.files.Range(func(id FileID, df *diskFile) bool {
		err = multierr.Append(err, df.f.Close())
		dm.files.Delete(id)
		return true
	})
	dm.names = make(map[string]FileID)
	dm.closed = true
	return err
}
