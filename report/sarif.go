package report

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/viant/taintage/scanner"
	"github.com/viant/taintage/taint"
)

// SARIF emits the scan report in SARIF 2.1.0 for code-scanning uploads, one
// rule per sink.
type SARIF struct {
	Out io.Writer
}

func (s *SARIF) Write(report *scanner.Report) error {
	doc, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("failed to create sarif report: %w", err)
	}
	run := sarif.NewRunWithInformationURI("taintage", "https://github.com/viant/taintage")
	for _, finding := range report.Findings {
		run.AddRule(finding.Sink).
			WithDescription(fmt.Sprintf("Untrusted data reaches %v", finding.Sink)).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: toSarifLevel(finding.Risk),
			})
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(finding.File)).
				WithRegion(sarif.NewRegion().WithStartLine(finding.Line)),
		)
		result := sarif.NewRuleResult(finding.Sink).
			WithMessage(sarif.NewTextMessage(fmt.Sprintf("%v receives %v", finding.Sink, finding.Source))).
			WithLevel(toSarifLevel(finding.Risk)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}
	doc.AddRun(run)
	return doc.PrettyWrite(s.Out)
}

func toSarifLevel(risk taint.Risk) string {
	switch risk {
	case taint.High:
		return "error"
	case taint.Medium:
		return "warning"
	}
	return "note"
}
