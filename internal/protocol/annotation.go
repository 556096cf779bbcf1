package protocol

import "encoding/binary"

const annotationGeometryLen = 1 + 1 + 4*2 + 2*2

// AnnotationCreate places a new text box. The server assigns the id.
type AnnotationCreate struct {
	ctx
	ID   uint8
	X, Y int32
	W, H uint16
}

func (*AnnotationCreate) Type() Type { return TypeAnnotationCreate }
func (*AnnotationCreate) Len() int   { return annotationGeometryLen }

func (m *AnnotationCreate) appendPayload(b []byte) []byte {
	return appendGeometry(b, m.Ctx, m.ID, m.X, m.Y, m.W, m.H)
}

func parseAnnotationCreate(p []byte) (Message, error) {
	if len(p) != annotationGeometryLen {
		return nil, ErrInvalidPayload
	}
	m := &AnnotationCreate{ctx: ctx{p[0]}, ID: p[1]}
	m.X, m.Y, m.W, m.H = readGeometry(p)
	return m, nil
}

// AnnotationReshape moves or resizes a text box.
type AnnotationReshape struct {
	ctx
	ID   uint8
	X, Y int32
	W, H uint16
}

func (*AnnotationReshape) Type() Type { return TypeAnnotationReshape }
func (*AnnotationReshape) Len() int   { return annotationGeometryLen }

func (m *AnnotationReshape) appendPayload(b []byte) []byte {
	return appendGeometry(b, m.Ctx, m.ID, m.X, m.Y, m.W, m.H)
}

func parseAnnotationReshape(p []byte) (Message, error) {
	if len(p) != annotationGeometryLen {
		return nil, ErrInvalidPayload
	}
	m := &AnnotationReshape{ctx: ctx{p[0]}, ID: p[1]}
	m.X, m.Y, m.W, m.H = readGeometry(p)
	return m, nil
}

func appendGeometry(b []byte, ctx, id uint8, x, y int32, w, h uint16) []byte {
	b = append(b, ctx, id)
	b = binary.BigEndian.AppendUint32(b, uint32(x))
	b = binary.BigEndian.AppendUint32(b, uint32(y))
	b = binary.BigEndian.AppendUint16(b, w)
	return binary.BigEndian.AppendUint16(b, h)
}

func readGeometry(p []byte) (x, y int32, w, h uint16) {
	return int32(binary.BigEndian.Uint32(p[2:])),
		int32(binary.BigEndian.Uint32(p[6:])),
		binary.BigEndian.Uint16(p[10:]),
		binary.BigEndian.Uint16(p[12:])
}

// AnnotationEdit replaces the content of a text box.
type AnnotationEdit struct {
	ctx
	ID      uint8
	BgColor uint32
	Text    string
}

func (*AnnotationEdit) Type() Type { return TypeAnnotationEdit }
func (m *AnnotationEdit) Len() int { return 1 + 1 + 4 + len(m.Text) }

func (m *AnnotationEdit) appendPayload(b []byte) []byte {
	b = append(b, m.Ctx, m.ID)
	b = binary.BigEndian.AppendUint32(b, m.BgColor)
	return append(b, m.Text...)
}

func parseAnnotationEdit(p []byte) (Message, error) {
	if len(p) < 6 {
		return nil, ErrInvalidPayload
	}
	return &AnnotationEdit{
		ctx:     ctx{p[0]},
		ID:      p[1],
		BgColor: binary.BigEndian.Uint32(p[2:]),
		Text:    string(p[6:]),
	}, nil
}

type AnnotationDelete struct {
	ctx
	ID uint8
}

func (*AnnotationDelete) Type() Type                      { return TypeAnnotationDelete }
func (*AnnotationDelete) Len() int                        { return 2 }
func (m *AnnotationDelete) appendPayload(b []byte) []byte { return append(b, m.Ctx, m.ID) }

func parseAnnotationDelete(p []byte) (Message, error) {
	if len(p) != 2 {
		return nil, ErrInvalidPayload
	}
	return &AnnotationDelete{ctx: ctx{p[0]}, ID: p[1]}, nil
}
