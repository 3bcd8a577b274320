package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC, oldB := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldV, oldC, oldB })

	Version, Commit, BuildTime = "1.2.3", "abc1234", "2024-01-15T10:00:00Z"

	if got, want := String(), "1.2.3 (abc1234) built 2024-01-15T10:00:00Z"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := UserAgent(), "algorithm-trading/1.2.3"; got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}
