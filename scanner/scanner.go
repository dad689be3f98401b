package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"golang.org/x/sync/errgroup"

	"github.com/viant/taintage/pyast"
	"github.com/viant/taintage/registry"
	"github.com/viant/taintage/taint"
)

// Report aggregates the outcome of one scan run.
type Report struct {
	RunID    string            `json:"runId"`
	Location string            `json:"location"`
	Files    int               `json:"files"`
	Findings []*taint.Finding  `json:"findings"`
	Errors   map[string]string `json:"errors,omitempty"`
	Started  time.Time         `json:"started"`
	Elapsed  time.Duration     `json:"elapsed"`
}

// Counts returns the number of findings per risk level.
func (r *Report) Counts() map[taint.Risk]int {
	counts := map[taint.Risk]int{}
	for _, finding := range r.Findings {
		counts[finding.Risk]++
	}
	return counts
}

// Scanner discovers Python sources under a location and analyzes each file
// independently in parallel. The registry is shared read-only across workers.
type Scanner struct {
	fs              afs.Service
	registry        *registry.Registry
	analyzer        *taint.Analyzer
	analyzerOptions []taint.Option
	logger          hclog.Logger
	match           MatcherFn
	workers         int
	failFast        bool
}

// MatcherFn decides which files and directories a scan visits.
type MatcherFn func(info os.FileInfo) bool

// New creates a scanner over reg.
func New(reg *registry.Registry, opts ...Option) *Scanner {
	s := &Scanner{
		fs:       afs.New(),
		registry: reg,
		logger:   hclog.NewNullLogger(),
		match:    PythonFiles,
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.analyzer = taint.New(reg, s.analyzerOptions...)
	return s
}

// Scan walks location, analyzes every matched file and returns the aggregate
// report with findings in (file, line) order. Per-file failures are recorded
// in the report and do not abort the scan unless fail-fast is set. On
// cancellation the report keeps the results of every completed file.
func (s *Scanner) Scan(ctx context.Context, location string) (*Report, error) {
	report := &Report{
		RunID:    uuid.New().String(),
		Location: location,
		Errors:   map[string]string{},
		Started:  time.Now(),
	}
	files, err := s.discover(ctx, location)
	if err != nil {
		return nil, err
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	var mu sync.Mutex
	for _, URL := range files {
		if groupCtx.Err() != nil {
			break
		}
		URL := URL
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			findings, err := s.scanFile(groupCtx, URL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("analysis failed", "file", URL, "error", err)
				report.Errors[URL] = err.Error()
				if s.failFast {
					return fmt.Errorf("%v: %w", URL, err)
				}
				return nil
			}
			report.Files++
			report.Findings = append(report.Findings, findings...)
			return nil
		})
	}
	err = group.Wait()
	if err == nil {
		err = ctx.Err()
	}
	sort.Slice(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Sink < b.Sink
	})
	report.Elapsed = time.Since(report.Started)
	s.logger.Debug("scan complete", "files", report.Files, "findings", len(report.Findings), "elapsed", report.Elapsed)
	return report, err
}

func (s *Scanner) discover(ctx context.Context, location string) ([]string, error) {
	var files []string
	var visitor storage.OnVisit = func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
		if !s.match(info) {
			return false, nil
		}
		if info.IsDir() {
			return true, nil
		}
		files = append(files, url.Join(baseURL, parent, info.Name()))
		return true, nil
	}
	if err := s.fs.Walk(ctx, location, visitor); err != nil {
		return nil, fmt.Errorf("failed to walk %v: %w", location, err)
	}
	sort.Strings(files)
	return files, nil
}

func (s *Scanner) scanFile(ctx context.Context, URL string) ([]*taint.Finding, error) {
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	// tree-sitter parsers are not safe for concurrent use; one per file
	parser := pyast.NewParser()
	file, err := parser.Parse(ctx, data, URL)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	s.logger.Debug("analyzing", "file", URL, "bytes", len(data))
	return s.analyzer.AnalyzeFile(file)
}
