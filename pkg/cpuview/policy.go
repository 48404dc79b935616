package cpuview

import (
	"strconv"
	"strings"

	"github.com/procveil/procveil/pkg/cpuset"
)

// Cpuset returns the cgroup's cpuset range list, e.g. "0-3,7".
func (r *Registry) Cpuset(cg string) (string, error) {
	str, err := r.cgroups.Get("cpuset", cg, "cpuset.cpus")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(str), nil
}

// readCPUCfsParam reads cpu.cfs_quota_us or cpu.cfs_period_us, depending on
// param.
func (r *Registry) readCPUCfsParam(cg, param string) (int64, error) {
	str, err := r.cgroups.Get("cpu", cg, "cpu.cfs_"+param+"_us")
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(str), 10, 64)
}

// MaxCPUCount returns the number of visible CPUs based on CPU quota and
// cpuset. Zero means no limit is set. It is also used to bound the
// /proc/cpuinfo view.
func (r *Registry) MaxCPUCount(cg string) uint32 {
	quota, err := r.readCPUCfsParam(cg, "quota")
	if err != nil {
		return 0
	}
	period, err := r.readCPUCfsParam(cg, "period")
	if err != nil {
		return 0
	}

	var nrCpusInCpuset uint32
	if cs, err := r.Cpuset(cg); err == nil {
		nrCpusInCpuset = cpuset.Count(cs)
	}

	if quota <= 0 || period <= 0 {
		return nrCpusInCpuset
	}

	rv := quota / period

	// In case quota/period does not yield a whole number, add one CPU for
	// the remainder.
	if quota%period > 0 {
		rv++
	}

	if nprocs := int64(r.nprocsOnline()); rv > nprocs {
		rv = nprocs
	}

	// Use min value in cpu quota and cpuset.
	if nrCpusInCpuset > 0 && int64(nrCpusInCpuset) < rv {
		rv = int64(nrCpusInCpuset)
	}

	return uint32(rv) // nolint:gosec
}

// exactCPUCount returns the fractional number of CPUs granted by the quota,
// used for the partial CPU idle correction. Zero when no quota is set.
func (r *Registry) exactCPUCount(cg string) float64 {
	quota, err := r.readCPUCfsParam(cg, "quota")
	if err != nil {
		return 0
	}
	period, err := r.readCPUCfsParam(cg, "period")
	if err != nil {
		return 0
	}

	if quota <= 0 || period <= 0 {
		return 0
	}

	rv := float64(quota) / float64(period)

	if nprocs := float64(r.nprocsOnline()); rv > nprocs {
		rv = nprocs
	}

	return rv
}
