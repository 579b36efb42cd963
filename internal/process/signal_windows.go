//go:build windows

package process

import "os"

// Windows has no SIGTERM; Kill is the only way to end the process.
func terminate(p *os.Process) error {
	return p.Kill()
}
