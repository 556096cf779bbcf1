package server

import (
	"golang.org/x/exp/slices"

	"manualpilot/drawsrv/internal/protocol"
)

// LayerState is the access control state the server tracks for a layer. Pixel
// content is never seen by the server.
type LayerState struct {
	ID        uint8
	Locked    bool
	Exclusive []uint8
}

// IsLockedFor reports whether user may not draw on the layer.
func (l *LayerState) IsLockedFor(user uint8) bool {
	if l.Locked {
		return true
	}
	return len(l.Exclusive) > 0 && !slices.Contains(l.Exclusive, user)
}

// DrawingContext is the per-user drawing state the pipeline needs.
type DrawingContext struct {
	CurrentLayer uint8
	PenDown      bool
}

// SessionOptions are the defaults a Session returns to whenever it is reset.
type SessionOptions struct {
	Title    string
	Password string
	MaxUsers int
}

// Session is the state shared by everyone in the drawing session.
type Session struct {
	Locked             bool
	Closed             bool
	LayerControlLocked bool
	LockDefault        bool
	Title              string
	Password           string
	MaxUsers           int
	MinorVersion       int

	UserIDs *IDQueue

	opts          SessionOptions
	layerIDs      *IDQueue
	annotationIDs *IDQueue
	layers        []*LayerState
	annotations   map[uint8]bool
	drawing       map[uint8]*DrawingContext
}

func NewSession(opts SessionOptions) *Session {
	s := &Session{opts: opts}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.Locked = false
	s.Closed = false
	s.LayerControlLocked = false
	s.LockDefault = false
	s.Title = s.opts.Title
	s.Password = s.opts.Password
	s.MaxUsers = s.opts.MaxUsers
	s.MinorVersion = 0
	s.UserIDs = NewIDQueue(1, 255)
	s.resetCanvas()
	s.drawing = make(map[uint8]*DrawingContext)
}

func (s *Session) resetCanvas() {
	s.layerIDs = NewIDQueue(1, 255)
	s.annotationIDs = NewIDQueue(1, 255)
	s.layers = nil
	s.annotations = make(map[uint8]bool)
}

// Layer returns the layer with the given id, or nil.
func (s *Session) Layer(id uint8) *LayerState {
	for _, l := range s.layers {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// Layers returns the layers from bottom to top.
func (s *Session) Layers() []*LayerState { return s.layers }

// DrawingContext returns the drawing context of user, creating it on first use.
func (s *Session) DrawingContext(user uint8) *DrawingContext {
	dc, ok := s.drawing[user]
	if !ok {
		dc = &DrawingContext{}
		s.drawing[user] = dc
	}
	return dc
}

func (s *Session) forgetUser(user uint8) {
	delete(s.drawing, user)
}

func (s *Session) ToolChange(msg *protocol.ToolChange) {
	s.DrawingContext(msg.ContextID()).CurrentLayer = msg.Layer
}

func (s *Session) PenDown(user uint8) {
	s.DrawingContext(user).PenDown = true
}

func (s *Session) PenUp(user uint8) {
	s.DrawingContext(user).PenDown = false
}

// CreateLayer adds a layer on top of the stack. With assignID the server picks
// the id and writes it into msg; otherwise the id in msg is taken as is. It
// returns false if no id is available.
func (s *Session) CreateLayer(msg *protocol.LayerCreate, assignID bool) bool {
	if assignID {
		id := s.layerIDs.TakeNext()
		if id == 0 {
			return false
		}
		msg.ID = id
	} else {
		if msg.ID == 0 || s.Layer(msg.ID) != nil {
			return false
		}
		s.layerIDs.Reserve(msg.ID)
	}
	s.layers = append(s.layers, &LayerState{ID: msg.ID})
	return true
}

// ReorderLayers rearranges layers to match the given bottom-to-top order.
// Unknown ids are ignored and layers the message leaves out keep their
// relative order on top.
func (s *Session) ReorderLayers(msg *protocol.LayerOrder) {
	ordered := make([]*LayerState, 0, len(s.layers))
	for _, id := range msg.Order {
		l := s.Layer(id)
		if l == nil || slices.Contains(ordered, l) {
			continue
		}
		ordered = append(ordered, l)
	}
	for _, l := range s.layers {
		if !slices.Contains(ordered, l) {
			ordered = append(ordered, l)
		}
	}
	s.layers = ordered
}

func (s *Session) DeleteLayer(id uint8) bool {
	i := slices.IndexFunc(s.layers, func(l *LayerState) bool { return l.ID == id })
	if i < 0 {
		return false
	}
	s.layers = slices.Delete(s.layers, i, i+1)
	s.layerIDs.Release(id)
	return true
}

func (s *Session) UpdateLayerACL(msg *protocol.LayerACL) bool {
	l := s.Layer(msg.ID)
	if l == nil {
		return false
	}
	l.Locked = msg.Locked
	l.Exclusive = slices.Clone(msg.Exclusive)
	return true
}

// CreateAnnotation registers an annotation. assignID works as in CreateLayer.
func (s *Session) CreateAnnotation(msg *protocol.AnnotationCreate, assignID bool) bool {
	if assignID {
		id := s.annotationIDs.TakeNext()
		if id == 0 {
			return false
		}
		msg.ID = id
	} else {
		if msg.ID == 0 || s.annotations[msg.ID] {
			return false
		}
		s.annotationIDs.Reserve(msg.ID)
	}
	s.annotations[msg.ID] = true
	return true
}

func (s *Session) DeleteAnnotation(id uint8) bool {
	if !s.annotations[id] {
		return false
	}
	delete(s.annotations, id)
	s.annotationIDs.Release(id)
	return true
}

func (s *Session) HasAnnotation(id uint8) bool { return s.annotations[id] }

// SyncInitialState rebuilds the layer, annotation and drawing context state from
// a snapshot uploaded by the session host.
func (s *Session) SyncInitialState(msgs []protocol.Message) {
	s.resetCanvas()
	for _, msg := range msgs {
		switch m := msg.(type) {
		case *protocol.LayerCreate:
			s.CreateLayer(m, false)
		case *protocol.LayerOrder:
			s.ReorderLayers(m)
		case *protocol.LayerDelete:
			s.DeleteLayer(m.ID)
		case *protocol.LayerACL:
			s.UpdateLayerACL(m)
		case *protocol.AnnotationCreate:
			s.CreateAnnotation(m, false)
		case *protocol.AnnotationDelete:
			s.DeleteAnnotation(m.ID)
		case *protocol.ToolChange:
			s.ToolChange(m)
		case *protocol.PenMove:
			s.PenDown(m.ContextID())
		case *protocol.PenUp:
			s.PenUp(m.ContextID())
		}
	}
}

// Config returns the session-config message describing the current flags.
func (s *Session) Config() *protocol.SessionConfig {
	var flags uint8
	if s.Locked {
		flags |= protocol.SessionLocked
	}
	if s.Closed {
		flags |= protocol.SessionClosed
	}
	if s.LayerControlLocked {
		flags |= protocol.SessionLayerControlLocked
	}
	if s.LockDefault {
		flags |= protocol.SessionLockDefault
	}
	maxUsers := s.MaxUsers
	if maxUsers > 255 {
		maxUsers = 255
	}
	return &protocol.SessionConfig{MaxUsers: uint8(maxUsers), Flags: flags}
}
