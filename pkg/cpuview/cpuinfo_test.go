package cpuview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const hostCpuinfo = `processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU
cpu MHz		: 2400.000

processor	: 1
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU
cpu MHz		: 2600.000

processor	: 2
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU
cpu MHz		: 2800.000

`

func TestProcCpuinfoCpusetFilter(t *testing.T) {
	r := require.New(t)
	fs := newFakeCgroupFS()
	fs.set("cpu", "/cg", "cpu.shares", "1024\n")
	fs.set("cpuset", "/cg", "cpuset.cpus", "1-2\n")
	reg := newTestRegistry(fs, 3, 3)

	buf := make([]byte, 64*1024)
	n, err := reg.ProcCpuinfo("/cg", "1-2", strings.NewReader(hostCpuinfo), buf)
	r.NoError(err)

	out := string(buf[:n])
	r.NotContains(out, "2400.000")
	r.Contains(out, "processor\t: 0\n")
	r.Contains(out, "processor\t: 1\n")
	r.NotContains(out, "processor\t: 2\n")
	r.Contains(out, "2600.000")
	r.Contains(out, "2800.000")
}

func TestProcCpuinfoQuotaLimit(t *testing.T) {
	r := require.New(t)
	fs := newFakeCgroupFS()
	setPolicy(fs, "/cg", 100000, 100000, "0-2")
	reg := newTestRegistry(fs, 3, 3)

	buf := make([]byte, 64*1024)
	n, err := reg.ProcCpuinfo("/cg", "0-2", strings.NewReader(hostCpuinfo), buf)
	r.NoError(err)

	out := string(buf[:n])
	r.Contains(out, "processor\t: 0\n")
	r.NotContains(out, "processor\t: 1\n")
	r.Contains(out, "2400.000")
	r.NotContains(out, "2600.000")
}

func TestProcCpuinfoBufferTooSmall(t *testing.T) {
	r := require.New(t)
	fs := newFakeCgroupFS()
	fs.set("cpuset", "/cg", "cpuset.cpus", "0-2\n")
	reg := newTestRegistry(fs, 3, 3)

	buf := make([]byte, 4)
	_, err := reg.ProcCpuinfo("/cg", "0-2", strings.NewReader(hostCpuinfo), buf)
	r.ErrorIs(err, ErrBufferTooSmall)
}
