package scanner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/viant/taintage/taint"
)

type Option func(*Scanner)

// WithWorkers caps the number of files analyzed concurrently.
func WithWorkers(workers int) Option {
	return func(s *Scanner) {
		if workers > 0 {
			s.workers = workers
		}
	}
}

// WithFailFast aborts the scan on the first per-file failure.
func WithFailFast() Option {
	return func(s *Scanner) {
		s.failFast = true
	}
}

// WithLogger sets the scan logger.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithMatcher overrides the file matcher.
func WithMatcher(matcher MatcherFn) Option {
	return func(s *Scanner) {
		s.match = matcher
	}
}

// WithAnalyzerOptions forwards options to the per-file analyzer.
func WithAnalyzerOptions(opts ...taint.Option) Option {
	return func(s *Scanner) {
		s.analyzerOptions = append(s.analyzerOptions, opts...)
	}
}

// PythonFiles matches Python sources and skips virtualenv, cache and hidden
// directories.
func PythonFiles(info os.FileInfo) bool {
	name := info.Name()
	if info.IsDir() {
		switch name {
		case "venv", ".venv", "__pycache__", "node_modules", "site-packages":
			return false
		}
		return !strings.HasPrefix(name, ".") || name == "."
	}
	return filepath.Ext(name) == ".py"
}
