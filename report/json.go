package report

import (
	"encoding/json"
	"io"

	"github.com/viant/taintage/scanner"
)

// JSON emits the scan report as indented JSON.
type JSON struct {
	Out io.Writer
}

func (j *JSON) Write(report *scanner.Report) error {
	encoder := json.NewEncoder(j.Out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
