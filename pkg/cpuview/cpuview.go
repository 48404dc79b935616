// Package cpuview maintains per-cgroup virtualized CPU statistics. It
// reconciles the host per-CPU time table with the cgroup's own accounting
// and renders a stable /proc/stat style view covering only the CPUs the
// cgroup's quota, period and cpuset entitle it to.
package cpuview

import "errors"

var (
	// ErrBufferTooSmall is returned when a rendered view does not fit the
	// caller supplied buffer. Nothing is reported as written in that case.
	ErrBufferTooSmall = errors.New("output buffer too small")
)

// Usage holds one CPU's accumulated time in kernel ticks.
type Usage struct {
	User   uint64
	System uint64
	Idle   uint64
	Online bool
}

// CgroupReader is the cgroup filesystem contract the engine consumes. File
// names follow the v1 vocabulary; mapping to a unified hierarchy is the
// implementation's concern.
type CgroupReader interface {
	Get(controller, cg, file string) (string, error)
	ParamExists(controller, cg, file string) bool
}

func satSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
