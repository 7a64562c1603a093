package version

import (
	"strings"
	"testing"
	"time"
)

func withBuildVars(t *testing.T, version, commit, branch, buildTime string) {
	t.Helper()
	origVersion, origCommit, origBranch, origBuildTime := Version, GitCommit, GitBranch, BuildTime
	t.Cleanup(func() {
		Version, GitCommit, GitBranch, BuildTime = origVersion, origCommit, origBranch, origBuildTime
	})
	Version, GitCommit, GitBranch, BuildTime = version, commit, branch, buildTime
}

func TestGetDev(t *testing.T) {
	withBuildVars(t, "dev", "", "", "")
	info := Get()
	if info.Version != "dev" {
		t.Errorf("expected version 'dev', got %q", info.Version)
	}
	if info.Release {
		t.Error("dev should not be a release")
	}
	if info.GoVersion == "" || !strings.Contains(info.Platform, "/") {
		t.Errorf("expected runtime details, got %+v", info)
	}
}

func TestGetRelease(t *testing.T) {
	withBuildVars(t, "1.0.0", "abc1234", "main", "2024-01-15T10:30:00Z")
	info := Get()
	if info.GitCommit != "abc1234" {
		t.Errorf("expected 'abc1234', got %q", info.GitCommit)
	}
	if info.BuildDate.Year() != 2024 {
		t.Errorf("expected build year 2024, got %d", info.BuildDate.Year())
	}
	if !info.Dirty && !info.Release {
		t.Error("1.0.0 from a clean tree should be a release")
	}
}

func TestDirtyVersionIsNotRelease(t *testing.T) {
	withBuildVars(t, "1.0.0-dirty", "", "", "")
	if Get().Release {
		t.Error("dirty version should not be a release")
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"no commit", Info{Version: "dev"}, "dev"},
		{"commit", Info{Version: "1.0.0", GitCommit: "abc1234"}, "1.0.0-abc1234"},
		{"dirty", Info{Version: "1.0.0", GitCommit: "abc1234", Dirty: true}, "1.0.0-abc1234-dirty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.info.Short(); got != tc.want {
				t.Errorf("Short() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	built := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	info := Info{Version: "1.0.0", GitCommit: "abc1234", GitBranch: "main", BuildDate: built, GoVersion: "go1.26.0", Platform: "linux/amd64"}

	s := info.String()
	if s != "1.0.0-abc1234 built 2024-01-15T10:30:00Z go1.26.0 linux/amd64" {
		t.Errorf("unexpected string %q", s)
	}

	info.GitBranch = "feature/zip"
	if !strings.Contains(info.String(), "(feature/zip)") {
		t.Errorf("expected feature branch in %q", info.String())
	}
}

func TestFields(t *testing.T) {
	f := Info{Version: "1.0.0", GitCommit: "abc", Release: true, Platform: "linux/arm64"}.Fields()
	if f["version"] != "1.0.0" || f["commit"] != "abc" || f["release"] != true {
		t.Errorf("unexpected fields %v", f)
	}
}
