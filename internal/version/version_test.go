package version

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "1.2.3"
	if got := UserAgent(); got != "oddswatcher/1.2.3" {
		t.Fatalf("unexpected user agent %q", got)
	}
	if !strings.HasPrefix(String(), "oddswatcher 1.2.3\n") {
		t.Fatalf("unexpected build info %q", String())
	}
}
