//go:build !(linux || darwin)

package deps

import "errors"

// CheckDiskSpace is unsupported on this platform.
func CheckDiskSpace(string) (uint64, error) {
	return 0, errors.New("disk space check unsupported on this platform")
}
