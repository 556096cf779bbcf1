package protocol

import (
	"encoding/binary"
)

// Login carries one line of the login handshake in either direction.
type Login struct {
	ctx
	Text string
}

func NewLogin(text string) *Login { return &Login{Text: text} }

func (*Login) Type() Type                      { return TypeLogin }
func (m *Login) Len() int                      { return 1 + len(m.Text) }
func (m *Login) appendPayload(b []byte) []byte { return append(append(b, m.Ctx), m.Text...) }

func parseLogin(p []byte) (Message, error) {
	if len(p) < 1 {
		return nil, ErrInvalidPayload
	}
	return &Login{ctx: ctx{p[0]}, Text: string(p[1:])}, nil
}

// UserJoin announces a user.
type UserJoin struct {
	ctx
	Name string
}

func NewUserJoin(id uint8, name string) *UserJoin {
	return &UserJoin{ctx: ctx{id}, Name: name}
}

func (*UserJoin) Type() Type                      { return TypeUserJoin }
func (m *UserJoin) Len() int                      { return 1 + len(m.Name) }
func (m *UserJoin) appendPayload(b []byte) []byte { return append(append(b, m.Ctx), m.Name...) }

func parseUserJoin(p []byte) (Message, error) {
	if len(p) < 1 {
		return nil, ErrInvalidPayload
	}
	return &UserJoin{ctx: ctx{p[0]}, Name: string(p[1:])}, nil
}

const (
	userAttrLocked = 1 << iota
	userAttrOperator
)

// UserAttr tells clients about a user's lock and operator status.
type UserAttr struct {
	ctx
	Locked   bool
	Operator bool
}

func NewUserAttr(id uint8, locked, operator bool) *UserAttr {
	return &UserAttr{ctx: ctx{id}, Locked: locked, Operator: operator}
}

func (*UserAttr) Type() Type { return TypeUserAttr }
func (*UserAttr) Len() int   { return 2 }

func (m *UserAttr) appendPayload(b []byte) []byte {
	var attrs uint8
	if m.Locked {
		attrs |= userAttrLocked
	}
	if m.Operator {
		attrs |= userAttrOperator
	}
	return append(b, m.Ctx, attrs)
}

func parseUserAttr(p []byte) (Message, error) {
	if len(p) != 2 {
		return nil, ErrInvalidPayload
	}
	return &UserAttr{
		ctx:      ctx{p[0]},
		Locked:   p[1]&userAttrLocked != 0,
		Operator: p[1]&userAttrOperator != 0,
	}, nil
}

// UserLeave announces that a user has disconnected.
type UserLeave struct {
	ctx
}

func NewUserLeave(id uint8) *UserLeave { return &UserLeave{ctx{id}} }

func (*UserLeave) Type() Type                      { return TypeUserLeave }
func (*UserLeave) Len() int                        { return 1 }
func (m *UserLeave) appendPayload(b []byte) []byte { return append(b, m.Ctx) }

func parseUserLeave(p []byte) (Message, error) {
	if len(p) != 1 {
		return nil, ErrInvalidPayload
	}
	return &UserLeave{ctx{p[0]}}, nil
}

// Chat is a chat line. Operators also use it to issue slash commands.
type Chat struct {
	ctx
	Text string
}

func NewChat(id uint8, text string) *Chat { return &Chat{ctx: ctx{id}, Text: text} }

func (*Chat) Type() Type                      { return TypeChat }
func (m *Chat) Len() int                      { return 1 + len(m.Text) }
func (m *Chat) appendPayload(b []byte) []byte { return append(append(b, m.Ctx), m.Text...) }

func parseChat(p []byte) (Message, error) {
	if len(p) < 1 {
		return nil, ErrInvalidPayload
	}
	return &Chat{ctx: ctx{p[0]}, Text: string(p[1:])}, nil
}

// SnapshotModeKind is the step of the snapshot handshake a SnapshotMode message
// represents.
type SnapshotModeKind uint8

const (
	// SnapshotRequest asks a client for a snapshot.
	SnapshotRequest SnapshotModeKind = iota
	// SnapshotRequestNew asks for a snapshot that must be generated now rather
	// than taken from the client's own history.
	SnapshotRequestNew
	// SnapshotAck is the client's answer to a request.
	SnapshotAck
	// SnapshotEnd terminates an uploaded snapshot.
	SnapshotEnd
)

type SnapshotMode struct {
	ctx
	Mode SnapshotModeKind
}

func NewSnapshotMode(mode SnapshotModeKind) *SnapshotMode { return &SnapshotMode{Mode: mode} }

func (*SnapshotMode) Type() Type                      { return TypeSnapshotMode }
func (*SnapshotMode) Len() int                        { return 2 }
func (m *SnapshotMode) appendPayload(b []byte) []byte { return append(b, m.Ctx, uint8(m.Mode)) }

func parseSnapshotMode(p []byte) (Message, error) {
	if len(p) != 2 || p[1] > uint8(SnapshotEnd) {
		return nil, ErrInvalidPayload
	}
	return &SnapshotMode{ctx: ctx{p[0]}, Mode: SnapshotModeKind(p[1])}, nil
}

// SessionTitle changes the session title.
type SessionTitle struct {
	ctx
	Title string
}

func NewSessionTitle(id uint8, title string) *SessionTitle {
	return &SessionTitle{ctx: ctx{id}, Title: title}
}

func (*SessionTitle) Type() Type                      { return TypeSessionTitle }
func (m *SessionTitle) Len() int                      { return 1 + len(m.Title) }
func (m *SessionTitle) appendPayload(b []byte) []byte { return append(append(b, m.Ctx), m.Title...) }

func parseSessionTitle(p []byte) (Message, error) {
	if len(p) < 1 {
		return nil, ErrInvalidPayload
	}
	return &SessionTitle{ctx: ctx{p[0]}, Title: string(p[1:])}, nil
}

const (
	SessionLocked = 1 << iota
	SessionClosed
	SessionLayerControlLocked
	SessionLockDefault
)

// SessionConfig broadcasts session-wide flags.
type SessionConfig struct {
	ctx
	MaxUsers uint8
	Flags    uint8
}

func (*SessionConfig) Type() Type                      { return TypeSessionConfig }
func (*SessionConfig) Len() int                        { return 3 }
func (m *SessionConfig) appendPayload(b []byte) []byte { return append(b, m.Ctx, m.MaxUsers, m.Flags) }

func (m *SessionConfig) Has(flag uint8) bool { return m.Flags&flag != 0 }

func parseSessionConfig(p []byte) (Message, error) {
	if len(p) != 3 {
		return nil, ErrInvalidPayload
	}
	return &SessionConfig{ctx: ctx{p[0]}, MaxUsers: p[1], Flags: p[2]}, nil
}

// StreamPos tells a catching-up client how many bytes to expect before it is
// in sync.
type StreamPos struct {
	ctx
	Bytes uint32
}

func NewStreamPos(bytes uint32) *StreamPos { return &StreamPos{Bytes: bytes} }

func (*StreamPos) Type() Type { return TypeStreamPos }
func (*StreamPos) Len() int   { return 5 }

func (m *StreamPos) appendPayload(b []byte) []byte {
	return binary.BigEndian.AppendUint32(append(b, m.Ctx), m.Bytes)
}

func parseStreamPos(p []byte) (Message, error) {
	if len(p) != 5 {
		return nil, ErrInvalidPayload
	}
	return &StreamPos{ctx: ctx{p[0]}, Bytes: binary.BigEndian.Uint32(p[1:])}, nil
}
