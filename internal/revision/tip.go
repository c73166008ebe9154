package revision

import "strings"

// Later reports whether a follows b in the tip order: greater Timestamp,
// then greater Seq, then greater header hash. The order is total for
// distinct headers and identical on every peer.
func Later(a, b Record) bool {
	if a.Header.Timestamp != b.Header.Timestamp {
		return a.Header.Timestamp > b.Header.Timestamp
	}
	if a.Header.Seq != b.Header.Seq {
		return a.Header.Seq > b.Header.Seq
	}
	return strings.Compare(string(a.HeaderHash), string(b.HeaderHash)) > 0
}

// Latest returns the last record in tip order.
func Latest(rs []Record) (Record, bool) {
	if len(rs) == 0 {
		return Record{}, false
	}
	best := rs[0]
	for _, r := range rs[1:] {
		if Later(r, best) {
			best = r
		}
	}
	return best, true
}

// Tip walks a revision tree from root and returns the current revision.
//
// children maps a header hash to the live updates that reference it.
// At each step the latest child wins; concurrent branches that lose are
// kept in history but never surface as the current value.
func Tip(root Record, children map[Hash][]Record) Record {
	cur := root
	for {
		next, ok := Latest(children[cur.HeaderHash])
		if !ok {
			return cur
		}
		cur = next
	}
}
