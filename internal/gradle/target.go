// Package gradle drives the Android Gradle toolchain to produce packaged
// application artifacts. It owns attempt sequencing, failure-signature
// classification, retry backoff, archive variant scheduling, and the release
// bundle debug-symbol check. Process spawning, file listing, and telemetry are
// collaborator interfaces supplied by the caller.
package gradle

import (
	"fmt"
	"sort"
	"strings"
)

// ArtifactKind identifies the packaged output type of one build.
type ArtifactKind string

const (
	ArtifactApk       ArtifactKind = "apk"       // installable application package
	ArtifactAppBundle ArtifactKind = "appbundle" // distributable bundle (.aab)
	ArtifactAar       ArtifactKind = "aar"       // reusable library archive
)

// BuildMode selects the compilation mode of one build.
type BuildMode string

const (
	ModeDebug   BuildMode = "debug"
	ModeProfile BuildMode = "profile"
	ModeRelease BuildMode = "release"
)

// AndroidArch names a target ABI as it appears inside packaged artifacts.
type AndroidArch string

const (
	ArchArm64 AndroidArch = "arm64-v8a"
	ArchArm   AndroidArch = "armeabi-v7a"
	ArchX64   AndroidArch = "x86_64"
)

// PlatformID returns the -Ptarget-platform identifier for the architecture.
func (a AndroidArch) PlatformID() string {
	switch a {
	case ArchArm64:
		return "android-arm64"
	case ArchArm:
		return "android-arm"
	case ArchX64:
		return "android-x64"
	default:
		return string(a)
	}
}

// BuildTarget describes one toolchain invocation. It never mutates after
// construction; variant scheduling derives new values instead.
type BuildTarget struct {
	Artifact   ArtifactKind
	Mode       BuildMode
	Archs      []AndroidArch     // insertion order is preserved in the argv rendering
	EntryPoint string            // Dart entry point, forwarded as -Ptarget
	Flags      map[string]string // extra -P properties, rendered in sorted key order
	Verbose    bool              // adds --full-stacktrace and -Pverbose=true
}

// WithMode derives a copy of the target with a different build mode.
func (t BuildTarget) WithMode(mode BuildMode) BuildTarget {
	t.Mode = mode
	return t
}

// Task returns the Gradle task name for the target's artifact kind and mode.
func (t BuildTarget) Task() string {
	suffix := titleMode(t.Mode)
	switch t.Artifact {
	case ArtifactAppBundle:
		return "bundle" + suffix
	case ArtifactAar:
		return "assembleAar" + suffix
	default:
		return "assemble" + suffix
	}
}

func titleMode(m BuildMode) string {
	s := string(m)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// platformList joins the requested architectures in insertion order.
func (t BuildTarget) platformList() string {
	ids := make([]string, 0, len(t.Archs))
	for _, a := range t.Archs {
		ids = append(ids, a.PlatformID())
	}
	return strings.Join(ids, ",")
}

// sortedFlags renders the extra -P properties deterministically.
func (t BuildTarget) sortedFlags() []string {
	keys := make([]string, 0, len(t.Flags))
	for k := range t.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("-P%s=%s", k, t.Flags[k]))
	}
	return out
}

// Validate rejects targets the invoker cannot render into an invocation.
func (t BuildTarget) Validate() error {
	switch t.Artifact {
	case ArtifactApk, ArtifactAppBundle, ArtifactAar:
	default:
		return fmt.Errorf("unknown artifact kind %q", t.Artifact)
	}
	switch t.Mode {
	case ModeDebug, ModeProfile, ModeRelease:
	default:
		return fmt.Errorf("unknown build mode %q", t.Mode)
	}
	if len(t.Archs) == 0 {
		return fmt.Errorf("at least one target architecture is required")
	}
	return nil
}
