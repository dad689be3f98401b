package taint

type Option func(*Analyzer)

// WithMaxDepth bounds interprocedural descent into local helper calls.
// At the bound the result degrades to Unknown, never Clean.
func WithMaxDepth(depth int) Option {
	return func(a *Analyzer) {
		if depth > 0 {
			a.maxDepth = depth
		}
	}
}

// WithUnknownFindings controls whether Unknown values reaching a sink are
// reported as Low findings. On by default to favour recall.
func WithUnknownFindings(enabled bool) Option {
	return func(a *Analyzer) {
		a.reportUnknown = enabled
	}
}
