package pathmatch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCompileKinds(t *testing.T) {
	tests := []struct {
		raw  string
		kind Kind
	}{
		{"/etc", Absolute},
		{"/var/log", Absolute},
		{"~/.ssh", HomeRelative},
		{"~", HomeRelative},
		{"**/.env", AnywhereMatch},
		{"id_rsa", Basename},
		{".bash_history", Basename},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p := Compile(tt.raw)
			if p.Kind != tt.kind {
				t.Errorf("Compile(%q).Kind = %v, want %v", tt.raw, p.Kind, tt.kind)
			}
		})
	}
}

func TestAbsoluteMatches(t *testing.T) {
	p := Compile("/etc")

	if !p.Matches("/etc") {
		t.Error("expected /etc to match itself")
	}
	if !p.Matches("/etc/passwd") {
		t.Error("expected /etc/passwd to match under /etc")
	}
	if p.Matches("/etcetera") {
		t.Error("/etcetera must not match /etc (no partial component match)")
	}
}

func TestHomeRelativeMatches(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	p := Compile("~/.ssh")
	if !p.Matches(filepath.Join(home, ".ssh", "id_rsa")) {
		t.Error("expected ~/.ssh/id_rsa to match ~/.ssh")
	}
	if !p.Matches("~/.ssh/config") {
		t.Error("expected unexpanded ~/.ssh/config to match")
	}
	if p.Matches(filepath.Join(home, "projects")) {
		t.Error("~/projects must not match ~/.ssh")
	}
}

func TestAnywhereAndBasenameMatches(t *testing.T) {
	env := Compile("**/.env")
	if !env.Matches("/home/user/app/.env") {
		t.Error("expected .env to match anywhere")
	}
	if env.Matches("/home/user/app/.envrc") {
		t.Error(".envrc must not match .env")
	}

	envGlob := Compile("**/.env.*")
	if !envGlob.Matches("/srv/app/.env.production") {
		t.Error("expected .env.production to match .env.*")
	}
	if envGlob.Matches("/srv/app/.envrc") {
		t.Error(".envrc must not match .env.*")
	}

	key := Compile("id_rsa")
	if !key.Matches("/home/user/.ssh/id_rsa") {
		t.Error("expected basename id_rsa to match")
	}

	hooks := Compile("**/.git/hooks")
	if !hooks.Matches("/home/user/repo/.git/hooks/pre-commit") {
		t.Error("expected multi-component anywhere pattern to match")
	}
	if !hooks.Matches("/home/user/repo/.git/hooks") {
		t.Error("expected multi-component anywhere pattern to match directory itself")
	}
	if hooks.Matches("/home/user/repo/.github/hooks") {
		t.Error(".github/hooks must not match .git/hooks")
	}
}

func TestExpandHomeIdempotent(t *testing.T) {
	paths := []string{"~/.config", "/usr/local", "relative/path", "~"}
	for _, p := range paths {
		once := ExpandHome(p)
		twice := ExpandHome(once)
		if once != twice {
			t.Errorf("ExpandHome not idempotent for %q: %q != %q", p, once, twice)
		}
	}
}

func TestCompileAllSkipsEmpty(t *testing.T) {
	patterns := CompileAll([]string{"/etc", "", "~/.aws"})
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
}
