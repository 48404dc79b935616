package cpuview

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/procveil/procveil/pkg/metrics"
	"github.com/procveil/procveil/pkg/system"
)

// ReadCPUAcctUsageAll returns the cgroup's cumulative per-CPU user and
// system time converted to kernel ticks. cpuacct.usage_all is preferred;
// hosts without it fall back to cpuacct.usage_percpu, where the split into
// user and system is not available and the whole time is reported as user.
func (r *Registry) ReadCPUAcctUsageAll(cg string) ([]Usage, error) {
	ticks := system.ClockTicks()
	cpucount := r.nprocsConf()
	usage := make([]Usage, cpucount)

	str, err := r.cgroups.Get("cpuacct", cg, "cpuacct.usage_all")
	if err != nil {
		r.log.Debugf("failed to read cpuacct.usage_all for %s, reading cpuacct.usage_percpu instead", cg)
		str, err = r.cgroups.Get("cpuacct", cg, "cpuacct.usage_percpu")
		if err != nil {
			return nil, fmt.Errorf("reading cpuacct usage for %s: %w", cg, err)
		}
		metrics.CPUAcctFallbacksTotal.Inc()

		for i, field := range strings.Fields(str) {
			if i >= cpucount {
				break
			}
			ns, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing cpuacct.usage_percpu for %s: %w", cg, err)
			}
			usage[i].User = nsToTicks(ns, ticks)
		}
		return usage, nil
	}

	sc := bufio.NewScanner(strings.NewReader(str))
	if !sc.Scan() || !strings.HasPrefix(sc.Text(), "cpu user system") {
		return nil, fmt.Errorf("parsing cpuacct.usage_all for %s: missing header", cg)
	}

	j := 0
	for sc.Scan() && j < cpucount {
		line := sc.Text()
		if line == "" {
			continue
		}
		var cpu int
		var user, sys uint64
		if _, err := fmt.Sscanf(line, "%d %d %d", &cpu, &user, &sys); err != nil {
			return nil, fmt.Errorf("parsing cpuacct.usage_all for %s: line %q: %w", cg, line, err)
		}
		usage[j].User = nsToTicks(user, ticks)
		usage[j].System = nsToTicks(sys, ticks)
		j++
	}

	return usage, nil
}

// nsToTicks converts nanoseconds to USER_HZ ticks. The chained float
// division mirrors the kernel facing accounting this view imitates.
func nsToTicks(ns uint64, ticks int64) uint64 {
	return uint64(float64(ns) / 1000.0 / 1000 / 1000 * float64(ticks))
}
