package models

import "fmt"

// Readiness is the lifecycle of an asynchronously acquired resource or request.
//
//	Idle -> Requesting -> Ready -> Failed
//	                   -> Failed
//
// Ready moves to Failed when the resource is lost after acquisition. Ready and
// Failed may move back to Requesting when the owner allows a new attempt.
type Readiness int

const (
	Idle Readiness = iota
	Requesting
	Ready
	Failed
)

func (r Readiness) String() string {
	switch r {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("readiness(%d)", int(r))
	}
}

// Terminal reports whether r is Ready or Failed.
func (r Readiness) Terminal() bool {
	return r == Ready || r == Failed
}

// Next validates the transition from r to to and returns to.
func (r Readiness) Next(to Readiness) (Readiness, error) {
	ok := false
	switch to {
	case Requesting:
		ok = r == Idle || r.Terminal()
	case Ready:
		ok = r == Requesting
	case Failed:
		ok = r == Requesting || r == Ready
	}

	if !ok {
		return r, fmt.Errorf("invalid readiness transition %s -> %s", r, to)
	}
	return to, nil
}

func (r Readiness) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
