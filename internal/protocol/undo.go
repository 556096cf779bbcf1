package protocol

// UndoState is the position of an undo point in its user's undo history.
type UndoState uint8

const (
	// UndoDone points are part of the visible history.
	UndoDone UndoState = iota
	// UndoUndone points have been undone but can still be redone.
	UndoUndone
	// UndoGone points were undone and then cut off by a new undo point.
	UndoGone
)

func (s UndoState) String() string {
	switch s {
	case UndoDone:
		return "DONE"
	case UndoUndone:
		return "UNDONE"
	case UndoGone:
		return "GONE"
	}
	return "?"
}

// UndoPoint delimits one undoable unit of a user's drawing.
//
// State is not serialized. The server mutates it in place while it owns the
// stream; clients track their own copy.
type UndoPoint struct {
	ctx
	State UndoState
}

func NewUndoPoint(id uint8) *UndoPoint { return &UndoPoint{ctx: ctx{id}} }

func (*UndoPoint) Type() Type                      { return TypeUndoPoint }
func (*UndoPoint) Len() int                        { return 1 }
func (m *UndoPoint) appendPayload(b []byte) []byte { return append(b, m.Ctx) }

func parseUndoPoint(p []byte) (Message, error) {
	if len(p) != 1 {
		return nil, ErrInvalidPayload
	}
	return &UndoPoint{ctx: ctx{p[0]}}, nil
}

// Undo undoes (Points > 0) or redoes (Points < 0) undo points. A non-zero
// OverrideID makes it act on another user's history.
type Undo struct {
	ctx
	OverrideID uint8
	Points     int8
}

func (*Undo) Type() Type { return TypeUndo }
func (*Undo) Len() int   { return 3 }

func (m *Undo) appendPayload(b []byte) []byte {
	return append(b, m.Ctx, m.OverrideID, uint8(m.Points))
}

func parseUndo(p []byte) (Message, error) {
	if len(p) != 3 {
		return nil, ErrInvalidPayload
	}
	return &Undo{ctx: ctx{p[0]}, OverrideID: p[1], Points: int8(p[2])}, nil
}
