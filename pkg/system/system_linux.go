package system

import (
	"runtime"
	"sync"

	"github.com/tklauser/go-sysconf"
)

var clockTickOnce sync.Once

// The default clock tick in sysconf is 100. Never use this constant directly and only access the
// value via `ClockTicks`, as the user might change this value.
var clockTick int64 = 100

// ClockTicks returns the kernel USER_HZ value, the unit of all CPU times
// exposed through procfs.
func ClockTicks() int64 {
	clockTickOnce.Do(func() {
		ticks, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
		if err == nil {
			clockTick = ticks
		}
	})

	return clockTick
}

// NprocsConf returns the number of CPUs configured on the host, including
// offline ones. Per-CPU accounting arrays are sized by this value.
func NprocsConf() int {
	n, err := sysconf.Sysconf(sysconf.SC_NPROCESSORS_CONF)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return int(n)
}

// NprocsOnline returns the number of CPUs currently online.
func NprocsOnline() int {
	n, err := sysconf.Sysconf(sysconf.SC_NPROCESSORS_ONLN)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return int(n)
}
