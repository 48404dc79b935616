package cpuview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxCPUCount(t *testing.T) {
	as := assert.New(t)

	t.Run("whole quota", func(t *testing.T) {
		fs := newFakeCgroupFS()
		setPolicy(fs, "/cg", 200000, 100000, "0-3")
		reg := newTestRegistry(fs, 4, 4)
		as.Equal(uint32(2), reg.MaxCPUCount("/cg"))
	})

	t.Run("fractional quota rounds up", func(t *testing.T) {
		fs := newFakeCgroupFS()
		setPolicy(fs, "/cg", 150000, 100000, "0-3")
		reg := newTestRegistry(fs, 4, 4)
		as.Equal(uint32(2), reg.MaxCPUCount("/cg"))
	})

	t.Run("clamped to online cpus", func(t *testing.T) {
		fs := newFakeCgroupFS()
		setPolicy(fs, "/cg", 1600000, 100000, "")
		reg := newTestRegistry(fs, 4, 4)
		as.Equal(uint32(4), reg.MaxCPUCount("/cg"))
	})

	t.Run("cpuset smaller than quota wins", func(t *testing.T) {
		fs := newFakeCgroupFS()
		setPolicy(fs, "/cg", 400000, 100000, "0,2")
		reg := newTestRegistry(fs, 4, 4)
		as.Equal(uint32(2), reg.MaxCPUCount("/cg"))
	})

	t.Run("unlimited quota falls back to cpuset", func(t *testing.T) {
		fs := newFakeCgroupFS()
		setPolicy(fs, "/cg", -1, 100000, "0-2")
		reg := newTestRegistry(fs, 4, 4)
		as.Equal(uint32(3), reg.MaxCPUCount("/cg"))
	})

	t.Run("unlimited quota and no cpuset means no limit", func(t *testing.T) {
		fs := newFakeCgroupFS()
		setPolicy(fs, "/cg", -1, 100000, "")
		reg := newTestRegistry(fs, 4, 4)
		as.Equal(uint32(0), reg.MaxCPUCount("/cg"))
	})

	t.Run("missing control files mean no limit", func(t *testing.T) {
		fs := newFakeCgroupFS()
		reg := newTestRegistry(fs, 4, 4)
		as.Equal(uint32(0), reg.MaxCPUCount("/cg"))
	})
}

func TestExactCPUCount(t *testing.T) {
	as := assert.New(t)

	t.Run("fraction", func(t *testing.T) {
		fs := newFakeCgroupFS()
		setPolicy(fs, "/cg", 50000, 100000, "0")
		reg := newTestRegistry(fs, 4, 4)
		as.InDelta(0.5, reg.exactCPUCount("/cg"), 0.0001)
	})

	t.Run("clamped to online cpus", func(t *testing.T) {
		fs := newFakeCgroupFS()
		setPolicy(fs, "/cg", 1600000, 100000, "")
		reg := newTestRegistry(fs, 4, 4)
		as.InDelta(4.0, reg.exactCPUCount("/cg"), 0.0001)
	})

	t.Run("no quota", func(t *testing.T) {
		fs := newFakeCgroupFS()
		setPolicy(fs, "/cg", -1, 100000, "0")
		reg := newTestRegistry(fs, 4, 4)
		as.Zero(reg.exactCPUCount("/cg"))
	})
}
