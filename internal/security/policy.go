package security

import (
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Policy is the read-only rule set the gate consults. Build it once (via
// DefaultPolicy or LoadPolicy) and share it across evaluations.
type Policy struct {
	ForbiddenOperators []string
	ForbiddenPatterns  []*regexp.Regexp
	MaxDepth           int
	MaxNodes           int
	MaxAtomLength      int
	AllowedTools       map[string]bool
	AdminOnlyTools     map[string]bool

	// MinArity maps a control form to the minimum argument count it accepts.
	// The gate reports arity violations statically so the caller sees them
	// together with every other problem, before anything runs.
	MinArity map[string]int
}

// controlForms are part of the language itself, never subject to the tool
// whitelist.
var controlForms = map[string]bool{
	"plan":   true,
	"seq":    true,
	"par":    true,
	"if":     true,
	"let":    true,
	"set":    true,
	"while":  true,
	"handle": true,
	"+":      true,
	"-":      true,
	"*":      true,
	"/":      true,
	"<":      true,
	">":      true,
	"<=":     true,
	">=":     true,
	"=":      true,
}

func IsControlForm(op string) bool { return controlForms[op] }

var defaultForbiddenPatterns = []string{
	`__.*__`,
	`import\s`,
	`exec\s*\(`,
	`eval\s*\(`,
	`open\s*\(`,
	`file\s*\(`,
	`input\s*\(`,
	`compile\s*\(`,
	`globals\s*\(`,
	`locals\s*\(`,
	`vars\s*\(`,
}

func DefaultPolicy() *Policy {
	p := &Policy{
		ForbiddenOperators: []string{"__import__", "eval", "exec", "compile"},
		MaxDepth:           32,
		MaxNodes:           2000,
		MaxAtomLength:      1000,
		AllowedTools: map[string]bool{
			"notify":   true,
			"calc":     true,
			"search":   true,
			"db-query": true,
		},
		AdminOnlyTools: map[string]bool{
			"exec":       true,
			"shell":      true,
			"file-write": true,
			"system":     true,
		},
		MinArity: map[string]int{
			"seq":    1,
			"par":    1,
			"if":     2,
			"let":    2,
			"set":    2,
			"while":  2,
			"handle": 3,
			"+":      2,
			"-":      2,
			"*":      2,
			"/":      2,
			"<":      2,
			">":      2,
			"<=":     2,
			">=":     2,
			"=":      2,
		},
	}
	for _, pat := range defaultForbiddenPatterns {
		p.ForbiddenPatterns = append(p.ForbiddenPatterns, regexp.MustCompile(`(?i)`+pat))
	}
	return p
}

// policyFile is the TOML on-disk shape. Unset limits fall back to the
// defaults; tool lists replace the defaults when present.
type policyFile struct {
	MaxDepth           int      `toml:"max_depth"`
	MaxNodes           int      `toml:"max_nodes"`
	MaxAtomLength      int      `toml:"max_atom_length"`
	ForbiddenOperators []string `toml:"forbidden_operators"`
	ForbiddenPatterns  []string `toml:"forbidden_patterns"`
	AllowedTools       []string `toml:"allowed_tools"`
	AdminOnlyTools     []string `toml:"admin_only_tools"`
}

func LoadPolicy(path string) (*Policy, error) {
	var pf policyFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("failed to load policy file %s: %w", path, err)
	}

	p := DefaultPolicy()
	if pf.MaxDepth > 0 {
		p.MaxDepth = pf.MaxDepth
	}
	if pf.MaxNodes > 0 {
		p.MaxNodes = pf.MaxNodes
	}
	if pf.MaxAtomLength > 0 {
		p.MaxAtomLength = pf.MaxAtomLength
	}
	if len(pf.ForbiddenOperators) > 0 {
		p.ForbiddenOperators = pf.ForbiddenOperators
	}
	if len(pf.ForbiddenPatterns) > 0 {
		p.ForbiddenPatterns = nil
		for _, pat := range pf.ForbiddenPatterns {
			re, err := regexp.Compile(`(?i)` + pat)
			if err != nil {
				return nil, fmt.Errorf("invalid forbidden pattern %q: %w", pat, err)
			}
			p.ForbiddenPatterns = append(p.ForbiddenPatterns, re)
		}
	}
	if len(pf.AllowedTools) > 0 {
		p.AllowedTools = make(map[string]bool, len(pf.AllowedTools))
		for _, t := range pf.AllowedTools {
			p.AllowedTools[t] = true
		}
	}
	if len(pf.AdminOnlyTools) > 0 {
		p.AdminOnlyTools = make(map[string]bool, len(pf.AdminOnlyTools))
		for _, t := range pf.AdminOnlyTools {
			p.AdminOnlyTools[t] = true
		}
	}
	return p, nil
}

// ToolAllowed reports whether an operator may be dispatched as a tool call.
// Admin-only tools require the admin flag; everything else must be on the
// whitelist.
func (p *Policy) ToolAllowed(name string, admin bool) bool {
	if p.AdminOnlyTools[name] {
		return admin
	}
	return p.AllowedTools[name]
}
