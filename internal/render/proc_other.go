//go:build !unix

package render

import "os/exec"

func configureProcessGroup(*exec.Cmd) {}
