package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestAnnotationCreateLength(t *testing.T) {
	canonical := []byte{
		3,          // ctx
		7,          // id
		0, 0, 1, 0, // x = 256
		0xff, 0xff, 0xff, 0xfe, // y = -2
		0, 100, // w
		0, 50, // h
	}

	if _, err := Unmarshal(TypeAnnotationCreate, canonical[:13]); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("13 byte payload: expected ErrInvalidPayload, got %v", err)
	}

	msg, err := Unmarshal(TypeAnnotationCreate, canonical)
	if err != nil {
		t.Fatal(err)
	}

	ac, ok := msg.(*AnnotationCreate)
	if !ok {
		t.Fatalf("decoded %T", msg)
	}

	want := &AnnotationCreate{ctx: ctx{3}, ID: 7, X: 256, Y: -2, W: 100, H: 50}
	if !reflect.DeepEqual(ac, want) {
		t.Errorf("decoded %+v, want %+v", ac, want)
	}

	if b := Marshal(ac); !bytes.Equal(b, canonical) {
		t.Errorf("re-encoded %v, want %v", b, canonical)
	}

	again, err := Unmarshal(TypeAnnotationCreate, Marshal(ac))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(again, ac) {
		t.Errorf("round trip changed message: %+v", again)
	}
}

func TestPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		payload []byte
		ok      bool
	}{
		{"annotation reshape", TypeAnnotationReshape, make([]byte, 14), true},
		{"annotation reshape long", TypeAnnotationReshape, make([]byte, 15), false},
		{"annotation edit empty text", TypeAnnotationEdit, make([]byte, 6), true},
		{"annotation edit with text", TypeAnnotationEdit, append(make([]byte, 6), "hi"...), true},
		{"annotation edit short", TypeAnnotationEdit, make([]byte, 5), false},
		{"annotation delete", TypeAnnotationDelete, make([]byte, 2), true},
		{"annotation delete long", TypeAnnotationDelete, make([]byte, 3), false},
		{"tool change", TypeToolChange, make([]byte, 19), true},
		{"tool change short", TypeToolChange, make([]byte, 18), false},
		{"pen move one point", TypePenMove, make([]byte, 10), true},
		{"pen move two points", TypePenMove, make([]byte, 19), true},
		{"pen move no points", TypePenMove, make([]byte, 1), false},
		{"pen move partial point", TypePenMove, make([]byte, 14), false},
		{"pen up", TypePenUp, make([]byte, 1), true},
		{"pen up long", TypePenUp, make([]byte, 2), false},
		{"undo", TypeUndo, make([]byte, 3), true},
		{"snapshot mode bad kind", TypeSnapshotMode, []byte{0, 9}, false},
		{"empty login", TypeLogin, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Unmarshal(tt.typ, tt.payload)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if msg.Len() != len(tt.payload) {
					t.Errorf("Len() = %d, payload was %d bytes", msg.Len(), len(tt.payload))
				}
				return
			}
			if !errors.Is(err, ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestPenMovePoints(t *testing.T) {
	pm := &PenMove{ctx: ctx{4}, Points: []PenPoint{{X: -10, Y: 20, Pressure: 255}, {X: 1 << 20, Y: 0, Pressure: 0}}}

	b := Marshal(pm)
	if len(b) != 1+2*9 {
		t.Fatalf("encoded %d bytes", len(b))
	}

	msg, err := Unmarshal(TypePenMove, b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(msg, pm) {
		t.Errorf("decoded %+v, want %+v", msg, pm)
	}
}

func TestUnknownType(t *testing.T) {
	if _, err := Unmarshal(TypeSnapshotPoint, nil); !errors.Is(err, ErrUnknownType) {
		t.Errorf("snapshot points must not decode, got %v", err)
	}
	if _, err := Unmarshal(Type(200), []byte{0}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestCommandClassification(t *testing.T) {
	if !IsCommand(NewPenUp(1)) || !IsCommand(NewUndoPoint(1)) {
		t.Error("drawing messages must be commands")
	}
	if IsCommand(NewChat(1, "hi")) || IsCommand(&SnapshotPoint{}) || IsCommand(&LayerACL{}) {
		t.Error("meta messages must not be commands")
	}

	if IsOpCommand(&Undo{Points: 1}) {
		t.Error("plain undo is not an operator command")
	}
	if !IsOpCommand(&Undo{OverrideID: 2, Points: 1}) {
		t.Error("undo on behalf of another user is an operator command")
	}
	if !IsOpCommand(&LayerACL{ID: 1}) || !IsOpCommand(NewSessionTitle(1, "x")) {
		t.Error("acl and title changes are operator commands")
	}
}
