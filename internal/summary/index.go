package summary

import (
	"slices"
	"sort"

	"github.com/seventv/chatsync/internal/structures"
)

func less(a, b *structures.ChatSummary) bool {
	if a.LastMessageTimestamp != b.LastMessageTimestamp {
		return a.LastMessageTimestamp > b.LastMessageTimestamp
	}

	return a.PeerID < b.PeerID
}

// index holds one row per peer and keeps them ordered by recency. Rows are
// patched in place and moved to their new position rather than re-sorting the
// whole list.
type index struct {
	rows  map[string]*structures.ChatSummary
	order []*structures.ChatSummary
}

func newIndex() *index {
	return &index{
		rows: map[string]*structures.ChatSummary{},
	}
}

func (x *index) position(row *structures.ChatSummary) int {
	return sort.Search(len(x.order), func(i int) bool {
		return !less(x.order[i], row)
	})
}

func (x *index) get(peerID string) (structures.ChatSummary, bool) {
	r, ok := x.rows[peerID]
	if !ok {
		return structures.ChatSummary{}, false
	}

	return *r, true
}

// upsert stores row and reports whether anything changed.
func (x *index) upsert(row structures.ChatSummary) bool {
	cur, ok := x.rows[row.PeerID]
	if ok && *cur == row {
		return false
	}

	if ok {
		x.order = slices.Delete(x.order, x.position(cur), x.position(cur)+1)
		*cur = row
	} else {
		cur = &row
		x.rows[row.PeerID] = cur
	}

	x.order = slices.Insert(x.order, x.position(cur), cur)

	return true
}

func (x *index) remove(peerID string) bool {
	cur, ok := x.rows[peerID]
	if !ok {
		return false
	}

	i := x.position(cur)
	x.order = slices.Delete(x.order, i, i+1)
	delete(x.rows, peerID)

	return true
}

func (x *index) len() int {
	return len(x.order)
}

// list returns a copy of the rows in order.
func (x *index) list() []structures.ChatSummary {
	out := make([]structures.ChatSummary, len(x.order))
	for i, r := range x.order {
		out[i] = *r
	}

	return out
}
