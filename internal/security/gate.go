package security

import (
	"fmt"
	"log/slog"
	"splan/internal/ast"
	"strings"
)

// Gate statically checks a whole AST against a Policy before any evaluation.
// It is stateless and side-effect free; it never partially executes the
// program. All violations are aggregated so the caller can report every
// problem at once.
type Gate struct {
	Policy *Policy
	Logger *slog.Logger
}

func NewGate(policy *Policy, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{Policy: policy, Logger: logger}
}

type Report struct {
	OK      bool
	Reasons []string
}

// Violation is the terminal error a rejected program surfaces to the caller.
// Programs rejected by the gate are never evaluated, so no handle form can
// catch this.
type Violation struct {
	Reasons []string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("security violation: %s", strings.Join(v.Reasons, "; "))
}

// Check walks the full AST once. admin extends the tool whitelist with the
// admin-only set.
func (g *Gate) Check(expr ast.Expression, admin bool) Report {
	c := &checker{policy: g.Policy, admin: admin}
	c.walk(expr, 1)

	if c.nodes > g.Policy.MaxNodes {
		c.reasons = append(c.reasons,
			fmt.Sprintf("program has %d nodes, exceeding the maximum of %d", c.nodes, g.Policy.MaxNodes))
	}

	report := Report{OK: len(c.reasons) == 0, Reasons: c.reasons}
	if !report.OK {
		g.Logger.Warn("program rejected by security gate",
			slog.Int("violations", len(report.Reasons)),
			slog.Any("reasons", report.Reasons))
	}
	return report
}

// CheckErr is Check for callers that want the rejection as an error value.
func (g *Gate) CheckErr(expr ast.Expression, admin bool) error {
	report := g.Check(expr, admin)
	if report.OK {
		return nil
	}
	return &Violation{Reasons: report.Reasons}
}

type checker struct {
	policy  *Policy
	admin   bool
	nodes   int
	reasons []string
}

func (c *checker) failf(format string, a ...any) {
	c.reasons = append(c.reasons, fmt.Sprintf(format, a...))
}

func (c *checker) walk(expr ast.Expression, depth int) {
	c.nodes++
	if depth > c.policy.MaxDepth {
		c.failf("expression nesting depth %d exceeds the maximum of %d", depth, c.policy.MaxDepth)
		return
	}

	switch expr := expr.(type) {
	case *ast.Atom:
		c.checkAtom(expr)
	case *ast.List:
		c.checkList(expr, depth)
	}
}

func (c *checker) checkAtom(atom *ast.Atom) {
	if atom.Kind != ast.StringAtom {
		return
	}
	if len(atom.Str) > c.policy.MaxAtomLength {
		c.failf("string atom of %d characters exceeds the maximum of %d", len(atom.Str), c.policy.MaxAtomLength)
	}
	for _, re := range c.policy.ForbiddenPatterns {
		if re.MatchString(atom.Str) {
			c.failf("string %q matches forbidden pattern %q", truncate(atom.Str, 40), re.String())
		}
	}
}

func (c *checker) checkList(list *ast.List, depth int) {
	if op, ok := list.Operator(); ok {
		for _, forbidden := range c.policy.ForbiddenOperators {
			if op == forbidden {
				c.failf("operator '%s' is forbidden", op)
			}
		}
		if IsControlForm(op) {
			if min, ok := c.policy.MinArity[op]; ok && len(list.Elements)-1 < min {
				c.failf("form '%s' requires at least %d arguments, got %d", op, min, len(list.Elements)-1)
			}
		} else if !c.policy.ToolAllowed(op, c.admin) {
			c.failf("tool '%s' is not on the allowed list", op)
		}
	}

	for _, child := range list.Elements {
		c.walk(child, depth+1)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
