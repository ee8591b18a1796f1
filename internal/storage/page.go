package storage

import (
	"fmt"

	"github.com/OneOfOne/xxhash"

	"github.com/tuannm99/novastore/internal/alias/bx"
)

// Header offsets
const (
	offLSN          = 0
	offChecksum     = 8
	offNextFreePage = 16
	offRecordNum    = 20
)

// +------------------+ 0
// | lsn              |
// | checksum         |
// | next free page   |
// | record num       |
// +------------------+ PageHeaderSize
// | presence bitmap  |
// | slot region      |
// |   (row or PAX)   |
// +------------------+ PageSize (8192)
//
// The layout after the header belongs to the page handles in package heap.
type Page struct {
	fileID FileID
	pageID PageID

	Buf []byte // fixed-size 8KB
}

func NewPage(buf []byte, fid FileID, pid PageID) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrWrongSize
	}
	return &Page{fileID: fid, pageID: pid, Buf: buf}, nil
}

func (p *Page) FileID() FileID { return p.fileID }
func (p *Page) PageID() PageID { return p.pageID }

func (p *Page) setIdentity(fid FileID, pid PageID) {
	p.fileID = fid
	p.pageID = pid
}

// ---- header getters/setters ----
func (p *Page) LSN() uint64 {
	return bx.U64(p.Buf[offLSN:])
}

func (p *Page) SetLSN(v uint64) {
	bx.PutU64(p.Buf[offLSN:], v)
}

func (p *Page) Checksum() uint64 {
	return bx.U64(p.Buf[offChecksum:])
}

func (p *Page) NextFreePageID() PageID {
	return PageID(bx.U32(p.Buf[offNextFreePage:]))
}

func (p *Page) SetNextFreePageID(v PageID) {
	bx.PutU32(p.Buf[offNextFreePage:], uint32(v))
}

func (p *Page) RecordNum() int {
	return int(bx.U32(p.Buf[offRecordNum:]))
}

func (p *Page) SetRecordNum(v int) {
	bx.PutU32(p.Buf[offRecordNum:], uint32(v))
}

// Body is everything after the fixed page header.
func (p *Page) Body() []byte {
	return p.Buf[PageHeaderSize:]
}

func (p *Page) reset() {
	clear(p.Buf)
	p.fileID = InvalidFileID
	p.pageID = InvalidPageID
}

func (p *Page) String() string {
	return fmt.Sprintf("page(file=%d id=%d lsn=%d next=%d records=%d)",
		p.fileID, p.pageID, p.LSN(), int64(p.NextFreePageID()), p.RecordNum())
}

// ---- checksum ----

// pageChecksum hashes the whole page except the checksum field itself.
func pageChecksum(buf []byte) uint64 {
	h := xxhash.New64()
	_, _ = h.Write(buf[:offChecksum])
	_, _ = h.Write(buf[offChecksum+8:])
	return h.Sum64()
}

func sealChecksum(buf []byte) {
	bx.PutU64(buf[offChecksum:], pageChecksum(buf))
}

// verifyChecksum accepts never-sealed pages (checksum 0), which is what a
// read past EOF or a freshly allocated page looks like.
func verifyChecksum(buf []byte) bool {
	stored := bx.U64(buf[offChecksum:])
	if stored == 0 {
		return true
	}
	return stored == pageChecksum(buf)
}
