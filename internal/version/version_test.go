package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestInfoString(t *testing.T) {
	info := GetInfo()
	s := info.String()

	assert.Contains(t, s, "extreload")
	assert.Contains(t, s, info.Version)
	assert.Contains(t, s, info.Platform)
}

func TestInfoJSON(t *testing.T) {
	info := Info{Version: "v1.2.0", GitCommit: "abc1234", BuildDate: "2026-01-01", GoVersion: "go1.25", Platform: "linux/amd64"}

	jsonStr, err := info.JSON()
	require.NoError(t, err)

	var parsed Info
	require.NoError(t, json.Unmarshal([]byte(jsonStr), &parsed))
	assert.Equal(t, info, parsed)
}

func TestFillFromBuildInfo(t *testing.T) {
	tests := []struct {
		name string
		in   Info
		bi   debug.BuildInfo
		want Info
	}{
		{
			name: "placeholders replaced",
			in:   Info{Version: "dev", GitCommit: "none", BuildDate: "unknown"},
			bi: debug.BuildInfo{
				Main: debug.Module{Version: "v0.3.1"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef"},
					{Key: "vcs.time", Value: "2026-02-03T04:05:06Z"},
				},
			},
			want: Info{Version: "v0.3.1", GitCommit: "0123456", BuildDate: "2026-02-03T04:05:06Z"},
		},
		{
			name: "ldflags win",
			in:   Info{Version: "v1.0.0", GitCommit: "fffffff", BuildDate: "today"},
			bi: debug.BuildInfo{
				Main:     debug.Module{Version: "v0.3.1"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}},
			},
			want: Info{Version: "v1.0.0", GitCommit: "fffffff", BuildDate: "today"},
		},
		{
			name: "devel module version ignored",
			in:   Info{Version: "dev", GitCommit: "none", BuildDate: "unknown"},
			bi:   debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			want: Info{Version: "dev", GitCommit: "none", BuildDate: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			fillFromBuildInfo(&got, &tt.bi)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShortCommit(t *testing.T) {
	assert.Equal(t, "abc1234", shortCommit("abc1234def"))
	assert.Equal(t, "abc", shortCommit("abc"))
	assert.Equal(t, "", shortCommit(""))
}
