//go:build unix

package buttonenv

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// RaiseFileLimit raises RLIMIT_NOFILE to the kernel-imposed ceiling, so a
// build with many concurrent workers opening many files (sources,
// depfiles, response files) does not hit EMFILE partway through. Failure
// is non-fatal to the caller; building still proceeds at the previous
// limit.
func RaiseFileLimit() error {
	fileMax, err := readProcUint("/proc/sys/fs/file-max")
	if err != nil {
		return err
	}
	nrOpen, err := readProcUint("/proc/sys/fs/nr_open")
	if err != nil {
		return err
	}
	max := fileMax
	if nrOpen < max {
		max = nrOpen
	}
	set := unix.Rlimit{Max: max, Cur: max}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &set); err != nil {
		return xerrors.Errorf("buttonenv: setrlimit: %w", err)
	}
	return nil
}

func readProcUint(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, xerrors.Errorf("buttonenv: read %s: %w", path, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
	if err != nil {
		return 0, xerrors.Errorf("buttonenv: parse %s: %w", path, err)
	}
	return v, nil
}
