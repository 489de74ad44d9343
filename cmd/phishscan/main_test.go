package main

import "testing"

func TestVersionString(t *testing.T) {
	cases := []struct{ version, commit, want string }{
		{"1.2.0", "abc123", "1.2.0+abc123"},
		{"1.2.0", "unknown", "1.2.0"},
		{"v1.2.0-3-gabc123", "abc123", "v1.2.0-3-gabc123"},
		{" ", "", "dev"},
	}
	for _, tc := range cases {
		version, commit = tc.version, tc.commit
		if got := versionString(); got != tc.want {
			t.Errorf("versionString(%q, %q) = %q, want %q", tc.version, tc.commit, got, tc.want)
		}
	}
}
