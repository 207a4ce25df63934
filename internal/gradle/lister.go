package gradle

import (
	"context"
)

// UnzipLister lists a bundle's file manifest with the system unzip tool.
// It reuses the ProcessRunner seam so tests and sandboxed environments can
// substitute their own listing.
type UnzipLister struct {
	Runner ProcessRunner
}

func (l UnzipLister) ListFiles(ctx context.Context, bundlePath string) (int, []string, error) {
	runner := l.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	res, err := runner.Run(ctx, CommandSpec{Path: "unzip", Args: []string{"-l", bundlePath}})
	if err != nil {
		return 0, nil, err
	}
	return res.ExitCode, res.Lines, nil
}
