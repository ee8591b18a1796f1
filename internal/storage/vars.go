package storage

import (
	"errors"
)

const (
	OneKB = 1 << 10 // 1,024

	PageSize = 1 << 13 // 8,192 (8 KiB)

	// Page header: lsn(8) checksum(8) nextFreePage(4) recordNum(4)
	PageHeaderSize = 24
)

const (
	FileMode0644 = 0o644
	FileMode0755 = 0o755
)

// FileID identifies an open file inside a DiskManager.
type FileID uint32

// PageID is the page number inside one file.
type PageID uint32

// FrameID is an index into the buffer pool frame array.
type FrameID int

const (
	InvalidFileID  FileID  = ^FileID(0)
	InvalidPageID  PageID  = ^PageID(0)
	InvalidFrameID FrameID = -1

	// FileHeaderPageID is reserved for per-file metadata (table header).
	FileHeaderPageID PageID = 0
)

var (
	ErrWrongSize        = errors.New("storage: buffer size != PageSize")
	ErrChecksumMismatch = errors.New("storage: page checksum mismatch")
	ErrFileNotOpen      = errors.New("storage: file is not open")
	ErrDiskClosed       = errors.New("storage: disk manager is closed")
)
