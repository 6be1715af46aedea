package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUseRemote_TruthTable(t *testing.T) {
	tests := []struct {
		forceLocal            bool
		remoteSupported       bool
		remoteWhenUnsupported bool
		want                  bool
	}{
		{forceLocal: true, remoteSupported: true, remoteWhenUnsupported: true, want: false},
		{forceLocal: true, remoteSupported: true, remoteWhenUnsupported: false, want: false},
		{forceLocal: true, remoteSupported: false, remoteWhenUnsupported: true, want: false},
		{forceLocal: true, remoteSupported: false, remoteWhenUnsupported: false, want: false},
		{forceLocal: false, remoteSupported: false, remoteWhenUnsupported: false, want: false},
		{forceLocal: false, remoteSupported: false, remoteWhenUnsupported: true, want: true},
		{forceLocal: false, remoteSupported: true, remoteWhenUnsupported: false, want: true},
		{forceLocal: false, remoteSupported: true, remoteWhenUnsupported: true, want: true},
	}

	for _, tt := range tests {
		c := Capabilities{RemoteSupported: tt.remoteSupported}
		p := Preferences{ForceLocal: tt.forceLocal, RemoteWhenUnsupported: tt.remoteWhenUnsupported}
		require.Equal(t, tt.want, UseRemote(c, p), "caps=%+v prefs=%+v", c, p)

		wantMode := Local
		if tt.want {
			wantMode = Remote
		}
		require.Equal(t, wantMode, Select(c, p))
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		goos      string
		override  string
		wantClass Class
	}{
		{name: "linux", goos: "linux", wantClass: ClassStandard},
		{name: "js wasm", goos: "js", wantClass: ClassRestricted},
		{name: "wasip1", goos: "wasip1", wantClass: ClassRestricted},
		{name: "override to restricted", goos: "darwin", override: "Restricted", wantClass: ClassRestricted},
		{name: "override to standard", goos: "js", override: " standard ", wantClass: ClassStandard},
		{name: "unknown override ignored", goos: "linux", override: "quantum", wantClass: ClassStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := detect(tt.goos, tt.override)
			require.Equal(t, tt.wantClass, c.Class)
			require.Equal(t, tt.wantClass == ClassStandard, c.RemoteSupported)
		})
	}
}

func TestDetect_ReadsEnvironment(t *testing.T) {
	t.Setenv(EnvClass, string(ClassRestricted))
	c := Detect()
	require.Equal(t, ClassRestricted, c.Class)
	require.False(t, c.RemoteSupported)
}

func TestMode_String(t *testing.T) {
	require.Equal(t, "local", Local.String())
	require.Equal(t, "remote", Remote.String())
	require.Equal(t, "unknown", Mode(7).String())
}
