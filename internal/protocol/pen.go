package protocol

import "encoding/binary"

// ToolChange sets the brush a user draws with.
type ToolChange struct {
	ctx
	Layer     uint8
	Blend     uint8
	Mode      uint8
	Spacing   uint8
	ColorHigh uint32
	ColorLow  uint32
	HardHigh  uint8
	HardLow   uint8
	SizeHigh  uint8
	SizeLow   uint8
	OpacHigh  uint8
	OpacLow   uint8
}

const toolChangeLen = 19

func (*ToolChange) Type() Type { return TypeToolChange }
func (*ToolChange) Len() int   { return toolChangeLen }

func (m *ToolChange) appendPayload(b []byte) []byte {
	b = append(b, m.Ctx, m.Layer, m.Blend, m.Mode, m.Spacing)
	b = binary.BigEndian.AppendUint32(b, m.ColorHigh)
	b = binary.BigEndian.AppendUint32(b, m.ColorLow)
	return append(b, m.HardHigh, m.HardLow, m.SizeHigh, m.SizeLow, m.OpacHigh, m.OpacLow)
}

func parseToolChange(p []byte) (Message, error) {
	if len(p) != toolChangeLen {
		return nil, ErrInvalidPayload
	}
	return &ToolChange{
		ctx:       ctx{p[0]},
		Layer:     p[1],
		Blend:     p[2],
		Mode:      p[3],
		Spacing:   p[4],
		ColorHigh: binary.BigEndian.Uint32(p[5:]),
		ColorLow:  binary.BigEndian.Uint32(p[9:]),
		HardHigh:  p[13],
		HardLow:   p[14],
		SizeHigh:  p[15],
		SizeLow:   p[16],
		OpacHigh:  p[17],
		OpacLow:   p[18],
	}, nil
}

type PenPoint struct {
	X, Y     int32
	Pressure uint8
}

const penPointLen = 9

// PenMove extends the user's current stroke by one or more points.
type PenMove struct {
	ctx
	Points []PenPoint
}

func (*PenMove) Type() Type { return TypePenMove }
func (m *PenMove) Len() int { return 1 + penPointLen*len(m.Points) }

func (m *PenMove) appendPayload(b []byte) []byte {
	b = append(b, m.Ctx)
	for _, pt := range m.Points {
		b = binary.BigEndian.AppendUint32(b, uint32(pt.X))
		b = binary.BigEndian.AppendUint32(b, uint32(pt.Y))
		b = append(b, pt.Pressure)
	}
	return b
}

func parsePenMove(p []byte) (Message, error) {
	if len(p) < 1+penPointLen || (len(p)-1)%penPointLen != 0 {
		return nil, ErrInvalidPayload
	}
	m := &PenMove{ctx: ctx{p[0]}, Points: make([]PenPoint, 0, (len(p)-1)/penPointLen)}
	for d := p[1:]; len(d) > 0; d = d[penPointLen:] {
		m.Points = append(m.Points, PenPoint{
			X:        int32(binary.BigEndian.Uint32(d)),
			Y:        int32(binary.BigEndian.Uint32(d[4:])),
			Pressure: d[8],
		})
	}
	return m, nil
}

// PenUp ends the user's current stroke.
type PenUp struct {
	ctx
}

func NewPenUp(id uint8) *PenUp { return &PenUp{ctx{id}} }

func (*PenUp) Type() Type                      { return TypePenUp }
func (*PenUp) Len() int                        { return 1 }
func (m *PenUp) appendPayload(b []byte) []byte { return append(b, m.Ctx) }

func parsePenUp(p []byte) (Message, error) {
	if len(p) != 1 {
		return nil, ErrInvalidPayload
	}
	return &PenUp{ctx{p[0]}}, nil
}
