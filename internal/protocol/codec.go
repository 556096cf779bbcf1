package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload is returned when a payload has the wrong length for its
	// message type.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnknownType is returned for message types that are not valid on the
	// wire.
	ErrUnknownType = errors.New("unknown message type")
)

var parsers = map[Type]func([]byte) (Message, error){
	TypeLogin:             parseLogin,
	TypeUserJoin:          parseUserJoin,
	TypeUserAttr:          parseUserAttr,
	TypeUserLeave:         parseUserLeave,
	TypeChat:              parseChat,
	TypeLayerACL:          parseLayerACL,
	TypeSnapshotMode:      parseSnapshotMode,
	TypeSessionTitle:      parseSessionTitle,
	TypeSessionConfig:     parseSessionConfig,
	TypeStreamPos:         parseStreamPos,
	TypeLayerCreate:       parseLayerCreate,
	TypeLayerAttr:         parseLayerAttr,
	TypeLayerOrder:        parseLayerOrder,
	TypeLayerRetitle:      parseLayerRetitle,
	TypeLayerDelete:       parseLayerDelete,
	TypePutImage:          parsePutImage,
	TypeToolChange:        parseToolChange,
	TypePenMove:           parsePenMove,
	TypePenUp:             parsePenUp,
	TypeAnnotationCreate:  parseAnnotationCreate,
	TypeAnnotationReshape: parseAnnotationReshape,
	TypeAnnotationEdit:    parseAnnotationEdit,
	TypeAnnotationDelete:  parseAnnotationDelete,
	TypeUndoPoint:         parseUndoPoint,
	TypeUndo:              parseUndo,
}

// Unmarshal decodes the payload of a message of type t. The payload is not
// retained.
func Unmarshal(t Type, payload []byte) (Message, error) {
	parse, ok := parsers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
	return parse(payload)
}

// Marshal returns the payload of msg.
func Marshal(msg Message) []byte {
	return msg.appendPayload(make([]byte, 0, msg.Len()))
}
