//go:build linux || darwin

package deps

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CheckDiskSpace reports the bytes available to unprivileged users on the
// filesystem holding dir.
func CheckDiskSpace(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
