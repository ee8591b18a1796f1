package record

import (
	"fmt"

	"github.com/tuannm99/novastore/internal/storage"
)

// RID (record ID) is the stable identity of a record inside a table file:
// PageID: data page number (page 0 is the file header)
// SlotID: slot index inside the page, -1 when invalid
type RID struct {
	PageID storage.PageID
	SlotID int32
}

var InvalidRID = RID{PageID: storage.InvalidPageID, SlotID: -1}

func (r RID) IsValid() bool {
	return r.PageID != storage.InvalidPageID && r.SlotID >= 0
}

func (r RID) String() string {
	if !r.IsValid() {
		return "rid(invalid)"
	}
	return fmt.Sprintf("rid(%d,%d)", r.PageID, r.SlotID)
}
