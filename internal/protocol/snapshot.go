package protocol

// SnapshotPoint is a bookmark in a MessageStream that carries a full dump of the
// session state as an embedded substream. It is never sent to clients itself;
// its substream is.
type SnapshotPoint struct {
	ctx
	substream []Message
	complete  bool
}

func (*SnapshotPoint) Type() Type                    { return TypeSnapshotPoint }
func (*SnapshotPoint) Len() int                      { return 0 }
func (*SnapshotPoint) appendPayload(b []byte) []byte { return b }

// Substream returns the messages collected so far. The caller must not modify
// the returned slice.
func (sp *SnapshotPoint) Substream() []Message { return sp.substream }

func (sp *SnapshotPoint) IsComplete() bool { return sp.complete }

// Append adds msg to the substream. A SnapshotMode END message completes the
// snapshot instead of being stored. Append reports whether the snapshot is now
// complete; messages offered to a complete snapshot are ignored.
func (sp *SnapshotPoint) Append(msg Message) bool {
	if sp.complete {
		return true
	}
	if mode, ok := msg.(*SnapshotMode); ok && mode.Mode == SnapshotEnd {
		sp.complete = true
		return true
	}
	sp.substream = append(sp.substream, msg)
	return false
}

// WireLen is the number of bytes the substream occupies on the wire.
func (sp *SnapshotPoint) WireLen() int {
	n := 0
	for _, msg := range sp.substream {
		n += WireLen(msg)
	}
	return n
}
