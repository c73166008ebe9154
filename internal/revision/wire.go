package revision

// WireElement is the caller-facing projection of a revision.
// It is derived at read time and never persisted.
type WireElement[T any] struct {
	Entry      T    `json:"entry"`
	HeaderHash Hash `json:"header_hash"`
	EntryHash  Hash `json:"entry_hash"`
}

// Link is a directed, tagged index edge.
type Link struct {
	Base      Hash    `json:"base"`
	Target    Hash    `json:"target"`
	Tag       string  `json:"tag"`
	Author    AgentID `json:"author"`
	Timestamp int64   `json:"timestamp"`
}
