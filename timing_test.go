package mudsmoke_test

import (
	"runtime"
	"time"
)

// timingSlack is how far past an expected duration a timing assertion
// tolerates. Windows CI runners execute several times slower than others.
func timingSlack() time.Duration {
	if runtime.GOOS == "windows" {
		return 3 * time.Second
	}
	return 750 * time.Millisecond
}

// timeTakenBy returns how long f took to run.
func timeTakenBy(f func()) time.Duration {
	start := time.Now()
	f()
	return time.Since(start)
}
