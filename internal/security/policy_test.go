package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicy(t *testing.T) {
	content := `
max_depth = 5
max_nodes = 50
allowed_tools = ["notify", "fetch"]
admin_only_tools = ["shell"]
forbidden_patterns = ['drop\s+table']
`
	path := filepath.Join(t.TempDir(), "policy.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if p.MaxDepth != 5 || p.MaxNodes != 50 {
		t.Errorf("limits not applied: depth=%d nodes=%d", p.MaxDepth, p.MaxNodes)
	}
	if !p.ToolAllowed("fetch", false) {
		t.Error("fetch should be allowed")
	}
	if p.ToolAllowed("calc", false) {
		t.Error("calc should have been replaced by the file's whitelist")
	}
	if p.ToolAllowed("shell", false) || !p.ToolAllowed("shell", true) {
		t.Error("shell should be admin-only")
	}
	if len(p.ForbiddenPatterns) != 1 {
		t.Errorf("expected 1 forbidden pattern, got %d", len(p.ForbiddenPatterns))
	}
	if !p.ForbiddenPatterns[0].MatchString("DROP TABLE users") {
		t.Error("patterns should match case-insensitively")
	}
	// unset field keeps the default
	if p.MaxAtomLength != DefaultPolicy().MaxAtomLength {
		t.Errorf("MaxAtomLength should fall back to default, got %d", p.MaxAtomLength)
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy("/nonexistent/policy.toml"); err == nil {
		t.Error("expected an error for a missing policy file")
	}
}

func TestLoadPolicyBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	if err := os.WriteFile(path, []byte("forbidden_patterns = ['[unclosed']\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Error("expected an error for an invalid regex")
	}
}
