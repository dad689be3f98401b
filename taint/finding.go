package taint

import (
	"encoding/json"
	"fmt"

	"github.com/minio/highwayhash"
)

// Risk ranks how dangerous a finding is.
type Risk int

const (
	Low Risk = iota
	Medium
	High
)

func (r Risk) String() string {
	switch r {
	case High:
		return "HIGH"
	case Medium:
		return "MEDIUM"
	}
	return "LOW"
}

func (r Risk) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Finding reports a taint flow that reaches an insecure deserialization sink.
type Finding struct {
	File        string  `json:"file"`
	Line        int     `json:"line"`
	Sink        string  `json:"sink"`
	Source      string  `json:"source"`
	Trace       []Hop   `json:"trace,omitempty"`
	Risk        Risk    `json:"risk"`
	Context     Context `json:"context,omitempty"`
	Fingerprint uint64  `json:"fingerprint"`
}

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// fingerprint identifies a finding by file, line, sink, source origin and
// argument position, so that re-walks of shared code collapse while distinct
// tainted arguments at the same sink line survive, even when their
// provenance starts at the same source description.
func fingerprint(file string, line int, sink, source string, sourceLine, arg int) uint64 {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0
	}
	_, _ = fmt.Fprintf(h, "%v|%v|%v|%v|%v|%v", file, line, sink, source, sourceLine, arg)
	return h.Sum64()
}

// riskFor applies the risk policy to the label observed at a sink. Unknown
// values and limited-reach sources rank Low, short chains from live input
// rank High, everything longer or less certain ranks Medium.
func riskFor(label Label) Risk {
	if label.State == Unknown {
		return Low
	}
	if len(label.Trace) <= 2 && label.Live && !label.Heuristic {
		return High
	}
	if len(label.Trace) > 2 || label.Wrapped || label.Heuristic {
		return Medium
	}
	return Low
}
