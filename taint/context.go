package taint

import (
	"fmt"
	"strings"
)

// ContextKind names the execution context a finding was discovered in.
type ContextKind string

const (
	ContextNone          ContextKind = ""
	ContextWebRoute      ContextKind = "web-route"
	ContextFileOperation ContextKind = "file-operation"
	ContextTaskExecution ContextKind = "task-execution"
)

// Context tags the execution context of an entry point.
type Context struct {
	Kind   ContextKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Method string      `json:"method,omitempty" yaml:"method,omitempty"`
	Path   string      `json:"path,omitempty" yaml:"path,omitempty"`
	Task   string      `json:"task,omitempty" yaml:"task,omitempty"`
}

func (c Context) String() string {
	switch c.Kind {
	case ContextWebRoute:
		if c.Path != "" {
			return fmt.Sprintf("web route %v %v", c.Method, c.Path)
		}
		return "web route"
	case ContextTaskExecution:
		if c.Task != "" {
			return fmt.Sprintf("task %v", c.Task)
		}
		return "task"
	case ContextFileOperation:
		return "file operation"
	}
	return ""
}

var httpMethods = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true, "patch": true, "head": true, "options": true,
}

var taskKeywords = []string{"task", "job", "worker", "cron", "schedule", "background"}

var fileKeywords = []string{"read", "write", "open", "load", "save", "file", "path", "upload", "download"}

// classify derives the execution context of a function from its decorators,
// falling back to name and docstring keywords.
func classify(def *FunctionDef) Context {
	for _, decorator := range def.Decorators {
		segments := strings.Split(decorator.Name, ".")
		last := segments[len(segments)-1]
		switch {
		case last == "route" || last == "api_view" || (len(segments) > 1 && httpMethods[last]):
			method := "GET"
			if httpMethods[last] {
				method = strings.ToUpper(last)
			}
			path := ""
			for _, arg := range decorator.Args {
				if strings.HasPrefix(arg, "/") {
					path = arg
					break
				}
			}
			if path == "" && len(decorator.Args) > 0 {
				path = decorator.Args[0]
			}
			return Context{Kind: ContextWebRoute, Method: method, Path: path}
		case last == "task" || last == "shared_task" || last == "periodic_task":
			return Context{Kind: ContextTaskExecution, Task: def.Name}
		}
	}
	text := strings.ToLower(def.Name + " " + def.Docstring)
	if containsAny(text, taskKeywords) {
		return Context{Kind: ContextTaskExecution, Task: def.Name}
	}
	if containsAny(text, fileKeywords) {
		return Context{Kind: ContextFileOperation}
	}
	return Context{}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
