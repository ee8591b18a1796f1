package bufferpool

import "github.com/tuannm99/novastore/internal/storage"

// FileView binds the shared Pool to one file so tables can address pages
// by PageID alone.
type FileView struct {
	pool *Pool
	fid  storage.FileID
}

var _ Manager = (*FileView)(nil)

// View returns a file-scoped Manager backed by the shared pool.
func (p *Pool) View(fid storage.FileID) *FileView {
	return &FileView{pool: p, fid: fid}
}

func (v *FileView) FileID() storage.FileID { return v.fid }

func (v *FileView) FetchPage(pageID storage.PageID) (*storage.Page, error) {
	return v.pool.FetchPage(v.fid, pageID)
}

func (v *FileView) UnpinPage(pageID storage.PageID, dirty bool) bool {
	return v.pool.UnpinPage(v.fid, pageID, dirty)
}

// FlushAll flushes dirty pages of this file only.
func (v *FileView) FlushAll() error {
	return v.pool.FlushAllPages(v.fid)
}

// Drop evicts every page of this file from the pool.
func (v *FileView) Drop() (bool, error) {
	return v.pool.DeleteAllPages(v.fid)
}
