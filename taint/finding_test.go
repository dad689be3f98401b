package taint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskFor(t *testing.T) {
	tests := []struct {
		description string
		label       Label
		expect      Risk
	}{
		{
			description: "unknown value ranks low",
			label:       Label{State: Unknown},
			expect:      Low,
		},
		{
			description: "short live chain ranks high",
			label: Label{
				State: Tainted,
				Live:  true,
				Trace: []Hop{{Note: "input()", Line: 1}, {Note: "assigned to data", Line: 2}},
			},
			expect: High,
		},
		{
			description: "heuristic demotes a short live chain",
			label: Label{
				State:     Tainted,
				Live:      true,
				Heuristic: true,
				Trace:     []Hop{{Note: "route parameter path", Line: 1}, {Note: "f.read()", Line: 2}},
			},
			expect: Medium,
		},
		{
			description: "long chain ranks medium",
			label: Label{
				State: Tainted,
				Live:  true,
				Trace: []Hop{{Note: "input()", Line: 1}, {Note: "assigned to a", Line: 2}, {Note: "passed to load(data)", Line: 4}},
			},
			expect: Medium,
		},
		{
			description: "wrapped non-live chain ranks medium",
			label: Label{
				State:   Tainted,
				Wrapped: true,
				Trace:   []Hop{{Note: "os.environ", Line: 1}, {Note: "open(...)", Line: 2}},
			},
			expect: Medium,
		},
		{
			description: "limited reach source ranks low",
			label: Label{
				State: Tainted,
				Trace: []Hop{{Note: "os.environ.get", Line: 1}},
			},
			expect: Low,
		},
	}
	for _, testCase := range tests {
		assert.EqualValues(t, testCase.expect, riskFor(testCase.label), testCase.description)
	}
}
