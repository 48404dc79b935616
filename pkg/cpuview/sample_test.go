package cpuview

import (
	"fmt"
	"testing"

	"github.com/procveil/procveil/pkg/system"
	"github.com/stretchr/testify/require"
)

func TestReadCPUAcctUsageAll(t *testing.T) {
	r := require.New(t)
	ticks := system.ClockTicks()

	fs := newFakeCgroupFS()
	fs.set("cpuacct", "/cg", "cpuacct.usage_all",
		"cpu user system\n0 2000000000 1000000000\n1 500000000 0\n")
	reg := newTestRegistry(fs, 2, 2)

	usage, err := reg.ReadCPUAcctUsageAll("/cg")
	r.NoError(err)
	r.Len(usage, 2)
	r.Equal(uint64(2*ticks), usage[0].User)
	r.Equal(uint64(ticks), usage[0].System)
	r.Equal(uint64(float64(ticks)/2), usage[1].User)
	r.Zero(usage[1].System)
}

func TestReadCPUAcctUsageAllPercpuFallback(t *testing.T) {
	r := require.New(t)
	ticks := system.ClockTicks()

	fs := newFakeCgroupFS()
	fs.set("cpuacct", "/cg", "cpuacct.usage_percpu", "3000000000 1000000000\n")
	reg := newTestRegistry(fs, 2, 2)

	usage, err := reg.ReadCPUAcctUsageAll("/cg")
	r.NoError(err)
	r.Len(usage, 2)

	// The per-CPU totals cannot be split, everything is reported as user.
	r.Equal(uint64(3*ticks), usage[0].User)
	r.Zero(usage[0].System)
	r.Equal(uint64(ticks), usage[1].User)
}

func TestReadCPUAcctUsageAllMissing(t *testing.T) {
	r := require.New(t)
	fs := newFakeCgroupFS()
	reg := newTestRegistry(fs, 2, 2)

	_, err := reg.ReadCPUAcctUsageAll("/cg")
	r.Error(err)
}

func TestReadCPUAcctUsageAllMalformed(t *testing.T) {
	r := require.New(t)
	fs := newFakeCgroupFS()
	fs.set("cpuacct", "/cg", "cpuacct.usage_all", "cpu user system\n0 garbage 1\n")
	reg := newTestRegistry(fs, 1, 1)

	_, err := reg.ReadCPUAcctUsageAll("/cg")
	r.Error(err)

	fs.set("cpuacct", "/cg", "cpuacct.usage_all", "bogus header\n")
	_, err = reg.ReadCPUAcctUsageAll("/cg")
	r.Error(err)
}

func TestReadCPUAcctUsageAllMoreCPUsThanConfigured(t *testing.T) {
	r := require.New(t)
	fs := newFakeCgroupFS()
	fs.set("cpuacct", "/cg", "cpuacct.usage_all",
		"cpu user system\n0 1000000000 0\n1 1000000000 0\n2 1000000000 0\n")
	reg := newTestRegistry(fs, 2, 2)

	usage, err := reg.ReadCPUAcctUsageAll("/cg")
	r.NoError(err)
	r.Len(usage, 2)
}

func TestNsToTicks(t *testing.T) {
	r := require.New(t)

	r.Equal(uint64(100), nsToTicks(1000000000, 100))
	r.Equal(uint64(50), nsToTicks(500000000, 100))
	r.Equal(uint64(0), nsToTicks(0, 100))
	// Sub-tick remainders are truncated.
	r.Equal(uint64(0), nsToTicks(9999999, 100))
}

func ExampleRegistry_ReadCPUAcctUsageAll() {
	fs := newFakeCgroupFS()
	fs.set("cpuacct", "/cg", "cpuacct.usage_all", "cpu user system\n0 1000000000 0\n")
	reg := newTestRegistry(fs, 1, 1)

	usage, _ := reg.ReadCPUAcctUsageAll("/cg")
	fmt.Println(len(usage))
	// Output: 1
}
