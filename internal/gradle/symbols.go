package gradle

import (
	"context"
	"log/slog"
	"strings"

	berrors "github.com/ConnectionMaster/flutter/internal/errors"
)

// DebugSymbolsPrefix is the bundle metadata directory holding per-ABI native
// debug artifacts.
const DebugSymbolsPrefix = "BUNDLE-METADATA/com.android.tools.build.debugsymbols/"

const noDebugSymbolsMessage = "app bundle does not contain native debug symbols for any requested architecture"

// FileLister enumerates the file manifest of a packaged bundle. A non-nil
// error means the listing tool could not run; a non-zero exit code means it
// ran and failed. Both are fatal to symbol validation.
type FileLister interface {
	ListFiles(ctx context.Context, bundlePath string) (exitCode int, lines []string, err error)
}

// ValidateDebugSymbols asserts that a release bundle carries native debug
// artifacts. A single requested architecture with a .sym or paired .dbg file
// under the metadata prefix satisfies the check. Callers must gate on release
// mode; the lister is always invoked here.
func ValidateDebugSymbols(ctx context.Context, lister FileLister, bundlePath string, archs []AndroidArch) error {
	exitCode, lines, err := lister.ListFiles(ctx, bundlePath)
	if err != nil {
		return berrors.Wrap(err, berrors.CategorySymbols, berrors.SeverityFatal, noDebugSymbolsMessage).
			WithContext("bundle", bundlePath)
	}
	if exitCode != 0 {
		return berrors.New(berrors.CategorySymbols, berrors.SeverityFatal, noDebugSymbolsMessage).
			WithExitCode(exitCode).
			WithContext("bundle", bundlePath).
			WithContext("cause", "file listing tool failed")
	}

	for _, arch := range archs {
		if archHasSymbols(lines, arch) {
			slog.Debug("Debug symbols present", "arch", string(arch), "bundle", bundlePath)
			return nil
		}
	}
	return berrors.New(berrors.CategorySymbols, berrors.SeverityFatal, noDebugSymbolsMessage).
		WithContext("bundle", bundlePath)
}

// archHasSymbols reports whether the manifest holds a .sym or .dbg entry
// scoped to the given architecture.
func archHasSymbols(lines []string, arch AndroidArch) bool {
	prefix := DebugSymbolsPrefix + string(arch) + "/"
	for _, line := range lines {
		entry := manifestEntry(line)
		if !strings.HasPrefix(entry, prefix) {
			continue
		}
		if strings.HasSuffix(entry, ".sym") || strings.HasSuffix(entry, ".dbg") {
			return true
		}
	}
	return false
}

// manifestEntry extracts the path column from one listing line. Listing tools
// such as `unzip -l` prepend size and date columns; the path is the last
// whitespace-separated field.
func manifestEntry(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
