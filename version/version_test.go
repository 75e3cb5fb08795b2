package version

import (
	"strings"
	"testing"
	"time"
)

func stamp(t *testing.T, version, commit, branch, built string) {
	t.Helper()
	old := [4]string{Version, Commit, Branch, BuildTime}
	Version, Commit, Branch, BuildTime = version, commit, branch, built
	t.Cleanup(func() {
		Version, Commit, Branch, BuildTime = old[0], old[1], old[2], old[3]
	})
}

func TestGet_Stamped(t *testing.T) {
	stamp(t, "1.4.0", "abc1234", "main", "2025-03-01T10:30:00Z")

	info := Get()
	if info.Version != "1.4.0" || info.Commit != "abc1234" {
		t.Fatalf("Get() = %+v", info)
	}
	want := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	if !info.BuiltAt.Equal(want) {
		t.Errorf("BuiltAt = %v, want %v", info.BuiltAt, want)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should come from the build info")
	}
}

func TestGet_BadBuildTime(t *testing.T) {
	stamp(t, "1.4.0", "abc1234", "", "yesterday")
	if info := Get(); info.Version != "1.4.0" {
		t.Errorf("Version = %q", info.Version)
	}
}

func TestInfo_Release(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want bool
	}{
		{"dev", Info{Version: "dev"}, false},
		{"tagged", Info{Version: "1.0.0"}, true},
		{"dirty suffix", Info{Version: "1.0.0-dirty"}, false},
		{"modified tree", Info{Version: "1.0.0", Modified: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Release(); got != tt.want {
				t.Errorf("Release() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInfo_Short(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "1.0.0", Commit: "abc1234"}, "1.0.0-abc1234"},
		{Info{Version: "1.0.0", Commit: "abc1234", Modified: true}, "1.0.0-abc1234-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.want {
				t.Errorf("Short() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfo_String(t *testing.T) {
	info := &Info{
		Version:   "1.0.0",
		Commit:    "abc1234",
		Branch:    "feature/lookup",
		GoVersion: "go1.26.0",
		BuiltAt:   time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	got := info.String()
	for _, part := range []string{"viewkit 1.0.0-abc1234", "(feature/lookup)", "built 2025-01-15T10:30:00Z", "go1.26.0"} {
		if !strings.Contains(got, part) {
			t.Errorf("String() = %q, missing %q", got, part)
		}
	}

	info.Branch = "main"
	if strings.Contains(info.String(), "main") {
		t.Errorf("main branch should be omitted: %q", info.String())
	}
}
