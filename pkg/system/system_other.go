//go:build !linux

package system

import "runtime"

func ClockTicks() int64 {
	return 100
}

func NprocsConf() int {
	return runtime.NumCPU()
}

func NprocsOnline() int {
	return runtime.NumCPU()
}
