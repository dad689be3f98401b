package taint

// State is the taint state of a value.
type State int

const (
	Clean State = iota
	Unknown
	Tainted
)

func (s State) String() string {
	switch s {
	case Tainted:
		return "tainted"
	case Unknown:
		return "unknown"
	}
	return "clean"
}

// Hop is one provenance step on the way from a source to a sink.
type Hop struct {
	Note string `json:"note" yaml:"note"`
	Line int    `json:"line" yaml:"line"`
}

// Label carries the taint state of a value together with its provenance.
type Label struct {
	State     State
	Trace     []Hop
	Live      bool // originates from live external input
	Wrapped   bool // passed through an open or path-construction wrapper
	Heuristic bool // derived through a heuristically resolved step
}

func clean() Label {
	return Label{}
}

func unknown() Label {
	return Label{State: Unknown}
}

// tainted starts a provenance chain at the given source description.
func tainted(note string, line int, live bool) Label {
	return Label{State: Tainted, Trace: []Hop{{Note: note, Line: line}}, Live: live}
}

// withHop extends the provenance without mutating the original label.
func (l Label) withHop(note string, line int) Label {
	trace := make([]Hop, len(l.Trace), len(l.Trace)+1)
	copy(trace, l.Trace)
	l.Trace = append(trace, Hop{Note: note, Line: line})
	return l
}

// union merges labels from alternative paths: Tainted beats Unknown beats
// Clean. On equal taint the first witness wins.
func union(a, b Label) Label {
	if b.State > a.State {
		return b
	}
	return a
}

// Shape tracks coarse value shapes the analyzer cares about.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeFileHandle
	ShapeUpload
)

// Store maps local names to taint labels within one function walk.
type Store struct {
	labels map[string]Label
	shapes map[string]Shape
}

func newStore() *Store {
	return &Store{labels: map[string]Label{}, shapes: map[string]Shape{}}
}

func (s *Store) get(name string) (Label, bool) {
	label, ok := s.labels[name]
	return label, ok
}

func (s *Store) set(name string, label Label) {
	s.labels[name] = label
}

func (s *Store) shape(name string) Shape {
	return s.shapes[name]
}

func (s *Store) setShape(name string, shape Shape) {
	if shape == ShapeNone {
		delete(s.shapes, name)
		return
	}
	s.shapes[name] = shape
}

func (s *Store) clone() *Store {
	clone := &Store{labels: make(map[string]Label, len(s.labels)), shapes: make(map[string]Shape, len(s.shapes))}
	for name, label := range s.labels {
		clone.labels[name] = label
	}
	for name, shape := range s.shapes {
		clone.shapes[name] = shape
	}
	return clone
}

// mergeStores unions the outcomes of alternative branches into one store.
// A name absent on some path keeps the label the other paths gave it.
func mergeStores(branches ...*Store) *Store {
	merged := newStore()
	for _, branch := range branches {
		for name, label := range branch.labels {
			if current, ok := merged.labels[name]; ok {
				merged.labels[name] = union(current, label)
			} else {
				merged.labels[name] = label
			}
		}
		for name, shape := range branch.shapes {
			if _, ok := merged.shapes[name]; !ok {
				merged.shapes[name] = shape
			}
		}
	}
	return merged
}

// replace swaps the receiver's content for another store's content.
func (s *Store) replace(other *Store) {
	s.labels = other.labels
	s.shapes = other.shapes
}
