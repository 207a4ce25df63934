package gradle

import (
	"context"
	"log/slog"
	"strings"
)

// Decision is the remediation outcome a signature handler returns.
type Decision string

const (
	DecisionRetry  Decision = "retry"  // schedule another attempt, backoff permitting
	DecisionAbort  Decision = "abort"  // fatal, surface the signature's label
	DecisionIgnore Decision = "ignore" // toolchain noise, treat the attempt as success
)

// Signature recognizes one known failure pattern in toolchain output.
// Test is a predicate over a single output line; Handle decides the
// remediation and may log advice for the user.
type Signature struct {
	Label  string
	Test   func(line string) bool
	Handle func(ctx context.Context, line string) Decision
}

// Match scans the captured output against the registry in caller-supplied
// order. The first signature whose predicate matches any line wins, so an
// earlier-registered signature takes precedence even when a later one matches
// an earlier line.
func Match(signatures []Signature, lines []string) (*Signature, string, bool) {
	for i := range signatures {
		for _, line := range lines {
			if signatures[i].Test(line) {
				return &signatures[i], line, true
			}
		}
	}
	return nil, "", false
}

func containsAny(line string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(line, n) {
			return true
		}
	}
	return false
}

func retryHandler(advice string) func(context.Context, string) Decision {
	return func(ctx context.Context, line string) Decision {
		slog.Warn(advice, "line", line)
		return DecisionRetry
	}
}

func abortHandler(advice string) func(context.Context, string) Decision {
	return func(ctx context.Context, line string) Decision {
		slog.Error(advice, "line", line)
		return DecisionAbort
	}
}

// DefaultSignatures returns the known Gradle failure catalog in matching
// priority order. Callers may prepend or replace entries; order is the
// tie-break when multiple signatures match the same output.
func DefaultSignatures() []Signature {
	return []Signature{
		{
			Label: "network",
			Test: func(line string) bool {
				return containsAny(line,
					"java.io.FileNotFoundException: https://downloads.gradle.org",
					"java.net.SocketException: Connection reset",
					"java.net.SocketTimeoutException",
					"Connection timed out",
					"Read timed out",
					"Gateway Time-out",
					"Connection refused")
			},
			Handle: retryHandler("Gradle threw an error while downloading artifacts from the network. Retrying."),
		},
		{
			Label: "remote-handshake",
			Test: func(line string) bool {
				return containsAny(line,
					"Remote host terminated the handshake",
					"Remote host closed connection during handshake")
			},
			Handle: retryHandler("The remote host terminated the TLS handshake. Retrying."),
		},
		{
			Label: "ssl-exception",
			Test: func(line string) bool {
				return containsAny(line, "javax.net.ssl.SSLException")
			},
			Handle: retryHandler("Gradle threw an SSL exception while downloading artifacts. Retrying."),
		},
		{
			Label: "zip-exception",
			Test: func(line string) bool {
				return containsAny(line, "java.util.zip.ZipException")
			},
			Handle: retryHandler("A dependency archive in the Gradle cache appears corrupted. Retrying; if this persists, delete the Gradle cache directory."),
		},
		{
			Label: "license-not-accepted",
			Test: func(line string) bool {
				return containsAny(line, "You have not accepted the license agreements")
			},
			Handle: abortHandler("Unable to download required Android SDK components. Accept the SDK licenses and try again."),
		},
		{
			Label: "permission-denied",
			Test: func(line string) bool {
				return containsAny(line, "Permission denied")
			},
			Handle: abortHandler("Gradle does not have execution permission. Check the permissions of the gradlew wrapper and the project directory."),
		},
		{
			Label: "flavor-undefined",
			Test: func(line string) bool {
				return containsAny(line, "Gradle project does not define a task suitable for the requested build")
			},
			Handle: abortHandler("The Gradle project does not define the requested flavor. Check the flavor dimensions in build.gradle."),
		},
		{
			Label: "r8",
			Test: func(line string) bool {
				return containsAny(line, "com.android.tools.r8")
			},
			Handle: abortHandler("The shrinker may have failed to optimize the Java bytecode. Consider disabling minification for this build."),
		},
		{
			Label: "min-sdk-version",
			Test: func(line string) bool {
				return containsAny(line, "uses-sdk:minSdkVersion")
			},
			Handle: abortHandler("A dependency requires a higher Android minSdkVersion. Raise minSdkVersion in build.gradle."),
		},
		{
			Label: "out-of-memory",
			Test: func(line string) bool {
				return containsAny(line, "java.lang.OutOfMemoryError")
			},
			Handle: abortHandler("The JVM ran out of memory. Increase org.gradle.jvmargs heap size in gradle.properties."),
		},
		{
			Label: "incompatible-java-gradle",
			Test: func(line string) bool {
				return containsAny(line, "Unsupported class file major version")
			},
			Handle: abortHandler("The installed Java version is incompatible with this Gradle version. Update the Gradle wrapper or select a compatible JDK."),
		},
		{
			Label: "filesystem-watch",
			Test: func(line string) bool {
				return containsAny(line, "Unable to list file systems to check whether they can be watched")
			},
			Handle: func(ctx context.Context, line string) Decision {
				slog.Debug("Ignoring benign file-system watch warning", "line", line)
				return DecisionIgnore
			},
		},
	}
}
