package cli

import "testing"

func TestParseOdds(t *testing.T) {
	got, err := parseOdds("pinnacle=1.95, bet365=2.05,")
	if err != nil {
		t.Fatalf("parseOdds: %v", err)
	}
	if len(got) != 2 || got["pinnacle"] != 1.95 || got["bet365"] != 2.05 {
		t.Fatalf("unexpected quotes %v", got)
	}

	for _, bad := range []string{"", "pinnacle", "=2.0", "pinnacle=abc"} {
		if _, err := parseOdds(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
