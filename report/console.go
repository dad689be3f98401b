package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/gookit/color"

	"github.com/viant/taintage/scanner"
	"github.com/viant/taintage/taint"
)

// Writer emits a scan report in one output format.
type Writer interface {
	Write(report *scanner.Report) error
}

// Console renders a report for terminals: findings grouped by file, ordered
// by risk, with provenance traces in verbose mode.
type Console struct {
	Out     io.Writer
	Verbose bool
}

func riskColor(risk taint.Risk) color.Color {
	switch risk {
	case taint.High:
		return color.Red
	case taint.Medium:
		return color.Yellow
	}
	return color.Green
}

func (c *Console) Write(report *scanner.Report) error {
	byFile := map[string][]*taint.Finding{}
	var files []string
	for _, finding := range report.Findings {
		if _, ok := byFile[finding.File]; !ok {
			files = append(files, finding.File)
		}
		byFile[finding.File] = append(byFile[finding.File], finding)
	}
	sort.Strings(files)
	for _, file := range files {
		findings := byFile[file]
		sort.SliceStable(findings, func(i, j int) bool {
			if findings[i].Risk != findings[j].Risk {
				return findings[i].Risk > findings[j].Risk
			}
			return findings[i].Line < findings[j].Line
		})
		if _, err := fmt.Fprintf(c.Out, "%v\n", color.Bold.Render(file)); err != nil {
			return err
		}
		for _, finding := range findings {
			context := ""
			if text := finding.Context.String(); text != "" {
				context = fmt.Sprintf(" [%v]", text)
			}
			if _, err := fmt.Fprintf(c.Out, "  %v line %v: %v receives %v%v\n",
				riskColor(finding.Risk).Render(finding.Risk.String()), finding.Line, finding.Sink, finding.Source, context); err != nil {
				return err
			}
			if c.Verbose {
				for _, hop := range finding.Trace {
					if _, err := fmt.Fprintf(c.Out, "      line %v: %v\n", hop.Line, hop.Note); err != nil {
						return err
					}
				}
			}
		}
	}
	return c.writeSummary(report)
}

func (c *Console) writeSummary(report *scanner.Report) error {
	counts := report.Counts()
	if _, err := fmt.Fprintf(c.Out, "\n%v files, %v findings: %v high, %v medium, %v low\n",
		report.Files, len(report.Findings), counts[taint.High], counts[taint.Medium], counts[taint.Low]); err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		if _, err := fmt.Fprintf(c.Out, "%v files failed:\n", len(report.Errors)); err != nil {
			return err
		}
		for _, file := range sortedKeys(report.Errors) {
			if _, err := fmt.Fprintf(c.Out, "  %v: %v\n", file, report.Errors[file]); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
