package domain

import "sort"

// ErrorIDKind is the namespace an error identifier belongs to. Task ids,
// play ids and phase composites live in separate namespaces so they can
// never collide even when their surface forms happen to match.
type ErrorIDKind string

const (
	ErrorIDTask  ErrorIDKind = "task"
	ErrorIDPlay  ErrorIDKind = "play"
	ErrorIDPhase ErrorIDKind = "phase"
)

// ErrorID is a tagged identifier of a failing entity in the output document.
type ErrorID struct {
	Kind  ErrorIDKind `json:"kind"`
	Value string      `json:"value"`
}

// ErrorIDSet is a set of tagged error identifiers. Duplicates collapse.
type ErrorIDSet map[ErrorID]struct{}

func NewErrorIDSet(ids ...ErrorID) ErrorIDSet {
	s := make(ErrorIDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s ErrorIDSet) Add(id ErrorID) { s[id] = struct{}{} }

func (s ErrorIDSet) Has(id ErrorID) bool {
	_, ok := s[id]
	return ok
}

// HasValue reports whether any namespace contains the given raw value. UI
// callers use it to highlight a node knowing only its raw id.
func (s ErrorIDSet) HasValue(value string) bool {
	return s.Has(ErrorID{Kind: ErrorIDTask, Value: value}) ||
		s.Has(ErrorID{Kind: ErrorIDPlay, Value: value}) ||
		s.Has(ErrorID{Kind: ErrorIDPhase, Value: value})
}

func (s ErrorIDSet) Len() int { return len(s) }

// Values returns the set's members sorted by namespace then value, for
// stable serialization.
func (s ErrorIDSet) Values() []ErrorID {
	out := make([]ErrorID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Value < out[j].Value
	})
	return out
}
