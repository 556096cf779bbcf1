package protocol

import "encoding/binary"

// LayerCreate adds a layer. The server assigns the id.
type LayerCreate struct {
	ctx
	ID    uint8
	Fill  uint32
	Title string
}

func (*LayerCreate) Type() Type { return TypeLayerCreate }
func (m *LayerCreate) Len() int { return 1 + 1 + 4 + len(m.Title) }

func (m *LayerCreate) appendPayload(b []byte) []byte {
	b = append(b, m.Ctx, m.ID)
	b = binary.BigEndian.AppendUint32(b, m.Fill)
	return append(b, m.Title...)
}

func parseLayerCreate(p []byte) (Message, error) {
	if len(p) < 6 {
		return nil, ErrInvalidPayload
	}
	return &LayerCreate{
		ctx:   ctx{p[0]},
		ID:    p[1],
		Fill:  binary.BigEndian.Uint32(p[2:]),
		Title: string(p[6:]),
	}, nil
}

type LayerAttr struct {
	ctx
	ID      uint8
	Opacity uint8
	Blend   uint8
}

func (*LayerAttr) Type() Type                      { return TypeLayerAttr }
func (*LayerAttr) Len() int                        { return 4 }
func (m *LayerAttr) appendPayload(b []byte) []byte { return append(b, m.Ctx, m.ID, m.Opacity, m.Blend) }

func parseLayerAttr(p []byte) (Message, error) {
	if len(p) != 4 {
		return nil, ErrInvalidPayload
	}
	return &LayerAttr{ctx: ctx{p[0]}, ID: p[1], Opacity: p[2], Blend: p[3]}, nil
}

// LayerOrder lists layer ids from bottom to top.
type LayerOrder struct {
	ctx
	Order []uint8
}

func (*LayerOrder) Type() Type                      { return TypeLayerOrder }
func (m *LayerOrder) Len() int                      { return 1 + len(m.Order) }
func (m *LayerOrder) appendPayload(b []byte) []byte { return append(append(b, m.Ctx), m.Order...) }

func parseLayerOrder(p []byte) (Message, error) {
	if len(p) < 1 {
		return nil, ErrInvalidPayload
	}
	return &LayerOrder{ctx: ctx{p[0]}, Order: append([]uint8(nil), p[1:]...)}, nil
}

type LayerRetitle struct {
	ctx
	ID    uint8
	Title string
}

func (*LayerRetitle) Type() Type { return TypeLayerRetitle }
func (m *LayerRetitle) Len() int { return 2 + len(m.Title) }

func (m *LayerRetitle) appendPayload(b []byte) []byte {
	return append(append(b, m.Ctx, m.ID), m.Title...)
}

func parseLayerRetitle(p []byte) (Message, error) {
	if len(p) < 2 {
		return nil, ErrInvalidPayload
	}
	return &LayerRetitle{ctx: ctx{p[0]}, ID: p[1], Title: string(p[2:])}, nil
}

// LayerDelete removes a layer, optionally merging it onto the one below.
type LayerDelete struct {
	ctx
	ID    uint8
	Merge bool
}

func (*LayerDelete) Type() Type { return TypeLayerDelete }
func (*LayerDelete) Len() int   { return 3 }

func (m *LayerDelete) appendPayload(b []byte) []byte {
	var merge uint8
	if m.Merge {
		merge = 1
	}
	return append(b, m.Ctx, m.ID, merge)
}

func parseLayerDelete(p []byte) (Message, error) {
	if len(p) != 3 {
		return nil, ErrInvalidPayload
	}
	return &LayerDelete{ctx: ctx{p[0]}, ID: p[1], Merge: p[2] != 0}, nil
}

// LayerACL sets a layer's lock flag and the set of users with exclusive access.
// An empty Exclusive list means everyone may draw.
type LayerACL struct {
	ctx
	ID        uint8
	Locked    bool
	Exclusive []uint8
}

func (*LayerACL) Type() Type { return TypeLayerACL }
func (m *LayerACL) Len() int { return 3 + len(m.Exclusive) }

func (m *LayerACL) appendPayload(b []byte) []byte {
	var locked uint8
	if m.Locked {
		locked = 1
	}
	return append(append(b, m.Ctx, m.ID, locked), m.Exclusive...)
}

func parseLayerACL(p []byte) (Message, error) {
	if len(p) < 3 {
		return nil, ErrInvalidPayload
	}
	return &LayerACL{
		ctx:       ctx{p[0]},
		ID:        p[1],
		Locked:    p[2] != 0,
		Exclusive: append([]uint8(nil), p[3:]...),
	}, nil
}

// PutImage draws a compressed bitmap onto a layer. The image bytes are opaque
// to the server.
type PutImage struct {
	ctx
	Layer uint8
	Flags uint8
	X, Y  uint16
	W, H  uint16
	Image []byte
}

func (*PutImage) Type() Type { return TypePutImage }
func (m *PutImage) Len() int { return 1 + 1 + 1 + 4*2 + len(m.Image) }

func (m *PutImage) appendPayload(b []byte) []byte {
	b = append(b, m.Ctx, m.Layer, m.Flags)
	b = binary.BigEndian.AppendUint16(b, m.X)
	b = binary.BigEndian.AppendUint16(b, m.Y)
	b = binary.BigEndian.AppendUint16(b, m.W)
	b = binary.BigEndian.AppendUint16(b, m.H)
	return append(b, m.Image...)
}

func parsePutImage(p []byte) (Message, error) {
	if len(p) < 11 {
		return nil, ErrInvalidPayload
	}
	return &PutImage{
		ctx:   ctx{p[0]},
		Layer: p[1],
		Flags: p[2],
		X:     binary.BigEndian.Uint16(p[3:]),
		Y:     binary.BigEndian.Uint16(p[5:]),
		W:     binary.BigEndian.Uint16(p[7:]),
		H:     binary.BigEndian.Uint16(p[9:]),
		Image: append([]byte(nil), p[11:]...),
	}, nil
}
