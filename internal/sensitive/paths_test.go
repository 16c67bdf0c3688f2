package sensitive

import "testing"

func TestSensitivePaths(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"~/.ssh/id_rsa", true},
		{"~/.ssh", true},
		{"~/.gnupg/secring.gpg", true},
		{"~/.aws/credentials", true},
		{"~/.kube/config", true},
		{"~/.npmrc", true},
		{"~/.netrc", true},
		{"~/.docker/config.json", true},
		{"/home/user/app/.env", true},
		{"/home/user/app/.env.production", true},
		{"/etc/passwd", true},
		{"/var/log/auth.log", true},
		{"/private/etc/hosts", true},
		{"~/.bash_history", true},
		{"~/.mozilla/firefox/profile.default", true},

		{"/home/user/app/.envrc", false},
		{"/home/user/projects/main.go", false},
		{"/home/user/projects/env", false},
		{"/usr/local/bin/jq", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := IsSensitivePath(tt.path)
			if got != tt.want {
				t.Errorf("IsSensitivePath(%q) = %v, want %v", tt.path, got, tt.want)
			}

			reason, ok := PathReason(tt.path)
			if ok != tt.want {
				t.Errorf("PathReason(%q) ok = %v, want %v", tt.path, ok, tt.want)
			}
			if tt.want && reason == "" {
				t.Errorf("PathReason(%q) returned empty reason for sensitive path", tt.path)
			}
		})
	}
}

func TestFirstCategoryWins(t *testing.T) {
	// A key inside ~/.ssh should be reported as key material, not as a
	// generic basename match from a later category.
	reason, ok := PathReason("~/.ssh/id_ed25519")
	if !ok {
		t.Fatal("expected sensitive")
	}
	if reason != "SSH or GPG private key material" {
		t.Errorf("unexpected reason %q", reason)
	}
}
