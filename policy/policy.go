// Package policy decides whether an engine runs out-of-line (Remote) or in the
// calling goroutine (Local).
package policy

import (
	"os"
	"runtime"
	"strings"
)

// EnvClass is the environment variable overriding the detected environment class.
const EnvClass = "OFFLOAD_ENV_CLASS"

// Class identifies the kind of environment the process runs in.
type Class string

const (
	// ClassStandard is a regular OS process able to host goroutines and child processes.
	ClassStandard Class = "standard"
	// ClassRestricted is an environment lacking the primitives required for
	// out-of-line execution (e.g. js/wasm or wasip1 targets, sandboxes).
	ClassRestricted Class = "restricted"
)

// Mode is the selected execution mode.
type Mode int

const (
	// Local runs the engine on the caller's goroutine.
	Local Mode = iota
	// Remote runs the engine in a separate execution context behind a transport.
	Remote
)

func (m Mode) String() string {
	switch m {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}

// Capabilities describes the environment. Compute it once (see Detect) and inject it.
type Capabilities struct {
	Class Class
	// RemoteSupported reports whether the environment provides the primitives
	// required for out-of-line execution.
	RemoteSupported bool
}

// Preferences are the caller's per-initialization execution preferences.
type Preferences struct {
	// ForceLocal requests in-line execution regardless of capabilities.
	ForceLocal bool
	// RemoteWhenUnsupported keeps Remote execution enabled even when the environment
	// class does not advertise support for it.
	RemoteWhenUnsupported bool
}

// UseRemote reports whether the engine should run out-of-line.
// Rules, in priority order:
//  1. ForceLocal selects Local.
//  2. An environment without remote support selects Local unless RemoteWhenUnsupported is set.
//  3. Otherwise Remote.
func UseRemote(c Capabilities, p Preferences) bool {
	switch {
	case p.ForceLocal:
		return false
	case !c.RemoteSupported && !p.RemoteWhenUnsupported:
		return false
	default:
		return true
	}
}

// Select is UseRemote expressed as a Mode.
func Select(c Capabilities, p Preferences) Mode {
	if UseRemote(c, p) {
		return Remote
	}
	return Local
}

// Detect computes Capabilities for the running process.
func Detect() Capabilities {
	return detect(runtime.GOOS, os.Getenv(EnvClass))
}

func detect(goos, override string) Capabilities {
	class := ClassStandard
	switch goos {
	case "js", "wasip1":
		class = ClassRestricted
	}

	switch Class(strings.ToLower(strings.TrimSpace(override))) {
	case ClassStandard:
		class = ClassStandard
	case ClassRestricted:
		class = ClassRestricted
	}

	return Capabilities{Class: class, RemoteSupported: class == ClassStandard}
}
