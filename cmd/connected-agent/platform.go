package main

import (
	"runtime"
	"time"
)

// shutdownGracePeriod bounds how long Shutdown waits for in-flight streams
// to close before the process exits anyway.
const shutdownGracePeriod = 5 * time.Second

func isLinux() bool   { return runtime.GOOS == "linux" }
func isMacOS() bool   { return runtime.GOOS == "darwin" }
func isWindows() bool { return runtime.GOOS == "windows" }
