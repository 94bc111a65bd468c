package hardware

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RaisePriority returns a setup function that sets the calling thread's
// nice value. The caller must have locked its goroutine to the thread.
func RaisePriority(nice int) func() error {
	return func() error {
		if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice); err != nil {
			return fmt.Errorf("setpriority %d: %w", nice, err)
		}
		return nil
	}
}
