// Package intent compiles free-text instructions into an ordered set of
// tool invocations using a fixed keyword rule table.
package intent

import (
	"strings"

	"agentcluster/internal/logging"
)

// Sentinel delimiters around a compiled tool-call list.
const (
	CallStart = "<|tool_call_start|>"
	CallEnd   = "<|tool_call_end|>"
)

// Fallback is returned when no rule matches.
const Fallback = "I am a GodCodeRX agent. I can perform tasks by calling tools. " +
	"Please provide a clear instruction related to file operations, linting, testing, or refactoring."

// Rule emits Call when every keyword in AllOf appears in the lower-cased prompt.
type Rule struct {
	Name  string
	AllOf []string
	Call  string
}

// Matches reports whether the rule fires for an already lower-cased prompt.
func (r Rule) Matches(lowered string) bool {
	for _, kw := range r.AllOf {
		if !strings.Contains(lowered, kw) {
			return false
		}
	}
	return true
}

// DefaultRules is the rule table, evaluated in order. Rules are independent:
// every matching rule contributes its call.
var DefaultRules = []Rule{
	{Name: "create_file", AllOf: []string{"create", "file"}, Call: `create_file(path="new_file.js", content="// Your code here")`},
	{Name: "lint_code", AllOf: []string{"lint"}, Call: `lint_code(path="src/index.js")`},
	{Name: "run_tests", AllOf: []string{"test"}, Call: `run_tests(suite="all")`},
	{Name: "refactor_code", AllOf: []string{"refactor"}, Call: `refactor_code(path="src/App.js", instructions="Improve performance")`},
}

// Result is the outcome of compiling one prompt.
type Result struct {
	Prompt  string   `json:"prompt"`
	Calls   []string `json:"calls,omitempty"`
	Output  string   `json:"output"`
	Matched bool     `json:"matched"`
}

// Compiler evaluates a rule table. The zero value uses DefaultRules.
type Compiler struct {
	rules []Rule
}

// NewCompiler creates a compiler over rules; nil means DefaultRules.
func NewCompiler(rules []Rule) *Compiler {
	return &Compiler{rules: rules}
}

// Compile maps prompt to tool calls. It has no side effects.
func (c *Compiler) Compile(prompt string) Result {
	rules := c.rules
	if rules == nil {
		rules = DefaultRules
	}

	lowered := strings.ToLower(prompt)
	res := Result{Prompt: prompt}
	for _, r := range rules {
		if r.Matches(lowered) {
			res.Calls = append(res.Calls, r.Call)
		}
	}

	if len(res.Calls) == 0 {
		res.Output = Fallback
		logging.IntentDebug("No rule matched prompt %q", prompt)
		return res
	}

	res.Matched = true
	res.Output = CallStart + strings.Join(res.Calls, ", ") + CallEnd
	logging.Intent("Compiled %d tool call(s) from prompt", len(res.Calls))
	return res
}

// Compile runs the default rule table.
func Compile(prompt string) Result {
	return NewCompiler(nil).Compile(prompt)
}
