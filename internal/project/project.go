// Package project locates the Android subproject of a Flutter app and exposes
// the handles the build orchestrator needs: the gradlew wrapper path and a
// git fingerprint for telemetry correlation.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	git "github.com/go-git/go-git/v5"
)

// Project is an immutable handle to one Flutter project on disk.
type Project struct {
	Root       string // project root (contains pubspec.yaml)
	AndroidDir string // android/ subdirectory hosting the Gradle project
	Wrapper    string // absolute path to the gradlew wrapper script
}

// Open resolves a project handle from the given root directory. A wrapper
// override (from config) takes precedence over the conventional
// android/gradlew location.
func Open(root, wrapperOverride string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	androidDir := filepath.Join(abs, "android")
	if info, err := os.Stat(androidDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no android/ directory under %s", abs)
	}

	wrapper := wrapperOverride
	if wrapper == "" {
		wrapper = filepath.Join(androidDir, wrapperScriptName())
	}
	if _, err := os.Stat(wrapper); err != nil {
		return nil, fmt.Errorf("gradle wrapper not found at %s: %w", wrapper, err)
	}

	return &Project{Root: abs, AndroidDir: androidDir, Wrapper: wrapper}, nil
}

// wrapperScriptName returns the platform-specific gradlew script name.
func wrapperScriptName() string {
	if runtime.GOOS == "windows" {
		return "gradlew.bat"
	}
	return "gradlew"
}

// HeadCommit resolves the project's git HEAD SHA for build fingerprinting.
// Projects outside a git work tree yield an empty string, not an error; the
// fingerprint is advisory metadata only.
func (p *Project) HeadCommit() string {
	repo, err := git.PlainOpenWithOptions(p.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}
