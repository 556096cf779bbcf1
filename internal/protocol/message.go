package protocol

import "fmt"

// Type identifies the kind of a Message. The zero value is not a valid type.
type Type uint8

const (
	TypeLogin Type = iota + 1
	TypeUserJoin
	TypeUserAttr
	TypeUserLeave
	TypeChat
	TypeLayerACL
	TypeSnapshotMode
	TypeSessionTitle
	TypeSessionConfig
	TypeStreamPos

	TypeLayerCreate
	TypeLayerAttr
	TypeLayerOrder
	TypeLayerRetitle
	TypeLayerDelete
	TypePutImage
	TypeToolChange
	TypePenMove
	TypePenUp
	TypeAnnotationCreate
	TypeAnnotationReshape
	TypeAnnotationEdit
	TypeAnnotationDelete
	TypeUndoPoint
	TypeUndo

	// TypeSnapshotPoint never appears on the wire. It only marks a position in
	// a MessageStream.
	TypeSnapshotPoint Type = 0x7f
)

// UndoHistoryLimit is the number of undo points, across all users, that the
// server keeps undoable.
const UndoHistoryLimit = 30

var typeNames = map[Type]string{
	TypeLogin:             "login",
	TypeUserJoin:          "user-join",
	TypeUserAttr:          "user-attr",
	TypeUserLeave:         "user-leave",
	TypeChat:              "chat",
	TypeLayerACL:          "layer-acl",
	TypeSnapshotMode:      "snapshot-mode",
	TypeSessionTitle:      "session-title",
	TypeSessionConfig:     "session-config",
	TypeStreamPos:         "stream-position",
	TypeLayerCreate:       "layer-create",
	TypeLayerAttr:         "layer-attr",
	TypeLayerOrder:        "layer-order",
	TypeLayerRetitle:      "layer-retitle",
	TypeLayerDelete:       "layer-delete",
	TypePutImage:          "put-image",
	TypeToolChange:        "tool-change",
	TypePenMove:           "pen-move",
	TypePenUp:             "pen-up",
	TypeAnnotationCreate:  "annotation-create",
	TypeAnnotationReshape: "annotation-reshape",
	TypeAnnotationEdit:    "annotation-edit",
	TypeAnnotationDelete:  "annotation-delete",
	TypeUndoPoint:         "undo-point",
	TypeUndo:              "undo",
	TypeSnapshotPoint:     "snapshot-point",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Message is one protocol event. The set of implementations is closed: every
// concrete message type lives in this package.
type Message interface {
	Type() Type

	// ContextID is the id of the user the message originates from. Zero
	// means the server.
	ContextID() uint8
	SetContextID(id uint8)

	// Len returns the serialized payload length, context id byte included.
	Len() int

	appendPayload(b []byte) []byte
}

type ctx struct {
	Ctx uint8
}

func (c *ctx) ContextID() uint8      { return c.Ctx }
func (c *ctx) SetContextID(id uint8) { c.Ctx = id }

// IsCommand reports whether msg is part of the replicated drawing history, as
// opposed to session metadata and server-to-client control messages.
func IsCommand(msg Message) bool {
	switch msg.Type() {
	case TypeLayerCreate, TypeLayerAttr, TypeLayerOrder, TypeLayerRetitle, TypeLayerDelete,
		TypePutImage, TypeToolChange, TypePenMove, TypePenUp,
		TypeAnnotationCreate, TypeAnnotationReshape, TypeAnnotationEdit, TypeAnnotationDelete,
		TypeUndoPoint, TypeUndo:
		return true
	case TypeLogin, TypeUserJoin, TypeUserAttr, TypeUserLeave, TypeChat, TypeLayerACL,
		TypeSnapshotMode, TypeSessionTitle, TypeSessionConfig, TypeStreamPos, TypeSnapshotPoint:
		return false
	}
	return false
}

// IsOpCommand reports whether msg may only be sent by a session operator.
func IsOpCommand(msg Message) bool {
	switch m := msg.(type) {
	case *LayerACL, *SessionTitle, *SessionConfig:
		return true
	case *Undo:
		return m.OverrideID != 0
	}
	return false
}

// WireLen is the number of bytes msg occupies on the wire, frame header
// included.
func WireLen(msg Message) int {
	return HeaderLen + msg.Len()
}
