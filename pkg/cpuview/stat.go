package cpuview

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/procveil/procveil/pkg/cpuset"
	"github.com/procveil/procveil/pkg/metrics"
)

// ProcStat renders the virtualized per-CPU block of /proc/stat for the
// cgroup into buf and returns the number of bytes written.
//
// hostStat must be positioned at the first per-CPU line of the host table
// (the aggregate "cpu" line is the caller's to strip). sample is the
// cgroup's cumulative per-CPU usage as returned by ReadCPUAcctUsageAll; its
// idle and online fields are filled in here. Everything from the first
// non-CPU line on is passed through verbatim after the virtualized block.
func (r *Registry) ProcStat(cg, cpusetList string, sample []Usage, hostStat io.Reader, buf []byte) (int, error) {
	n, err := r.procStat(cg, cpusetList, sample, hostStat, buf)
	if err != nil {
		metrics.CPUViewReadErrorsTotal.Inc()
		r.log.Errorf("rendering cpu view for %s: %v", cg, err)
		return 0, err
	}
	metrics.CPUViewReadsTotal.Inc()
	return n, nil
}

func (r *Registry) procStat(cg, cpusetList string, sample []Usage, hostStat io.Reader, buf []byte) (int, error) {
	nprocs := r.nprocsConf()
	if len(sample) < nprocs {
		nprocs = len(sample)
	}
	maxCpus := int(r.MaxCPUCount(cg))

	br := bufio.NewReader(hostStat)
	cpuCnt, retained := r.imputeIdle(cg, cpusetList, sample, br)

	// Cannot use more CPUs than is available due to cpuset.
	if maxCpus > cpuCnt {
		maxCpus = cpuCnt
	}

	node := r.findOrCreateNode(cg, nprocs)
	defer node.mu.Unlock()

	// If the new values are lower than values stored in memory, the cgroup
	// has been reset/recreated and we should reset too.
	for i := 0; i < nprocs; i++ {
		if !sample[i].Online {
			continue
		}
		if sample[i].User < node.usage[i].User {
			r.log.Debugf("resetting stat node for %s", cg)
			node.reset(nprocs)
			metrics.CPUViewNodeResetsTotal.Inc()
		}
		break
	}

	diff := make([]Usage, nprocs)
	var totalSum uint64
	for i := 0; i < nprocs; i++ {
		if !sample[i].Online {
			continue
		}
		diff[i] = Usage{
			User:   satSub(sample[i].User, node.usage[i].User),
			System: satSub(sample[i].System, node.usage[i].System),
			Idle:   satSub(sample[i].Idle, node.usage[i].Idle),
			Online: true,
		}
		totalSum += diff[i].User + diff[i].System + diff[i].Idle
	}

	// Fold the deltas into real usage. Online CPUs past the visible window
	// donate their busy time to the surplus pools.
	var userSurplus, systemSurplus uint64
	vis := -1
	for i := 0; i < nprocs; i++ {
		node.usage[i].Online = sample[i].Online
		if !sample[i].Online {
			continue
		}
		vis++

		node.usage[i].User += diff[i].User
		node.usage[i].System += diff[i].System
		node.usage[i].Idle += diff[i].Idle

		if maxCpus > 0 && vis >= maxCpus {
			userSurplus += diff[i].User
			systemSurplus += diff[i].System
		}
	}

	var userSum, systemSum, idleSum uint64
	if maxCpus > 0 {
		// threshold = maximum usage per cpu, including idle.
		threshold := totalSum / uint64(cpuCnt) * uint64(maxCpus) // nolint:gosec

		vis = -1
		for i := 0; i < nprocs; i++ {
			if !node.usage[i].Online {
				continue
			}
			vis++
			if vis == maxCpus {
				break
			}

			if diff[i].User+diff[i].System >= threshold {
				continue
			}

			// Add user.
			addCPUUsage(&userSurplus, &diff[i], &diff[i].User, threshold)

			if diff[i].User+diff[i].System >= threshold {
				continue
			}

			// If there is still room, add system.
			addCPUUsage(&systemSurplus, &diff[i], &diff[i].System, threshold)
		}

		if userSurplus > 0 {
			r.log.Debugf("leftover user: %d for %s", userSurplus, cg)
		}
		if systemSurplus > 0 {
			r.log.Debugf("leftover system: %d for %s", systemSurplus, cg)
		}

		var diffUser, diffSystem, diffIdle, maxDiffIdle uint64
		maxDiffIdleIndex := -1

		vis = -1
		for i := 0; i < nprocs; i++ {
			if !node.usage[i].Online {
				continue
			}
			vis++
			if vis == maxCpus {
				break
			}

			node.view[i].User += diff[i].User
			node.view[i].System += diff[i].System
			node.view[i].Idle += diff[i].Idle

			userSum += node.view[i].User
			systemSum += node.view[i].System
			idleSum += node.view[i].Idle

			diffUser += diff[i].User
			diffSystem += diff[i].System
			diffIdle += diff[i].Idle
			if maxDiffIdleIndex < 0 || diff[i].Idle > maxDiffIdle {
				maxDiffIdle = diff[i].Idle
				maxDiffIdleIndex = i
			}
		}

		// Revise the view to match a fractional quota: the tick budget the
		// quota does not grant is carved out of idle time, on the aggregate
		// and on the visible CPU with the largest idle delta.
		exactCpus := r.exactCPUCount(cg)
		if exactCpus < float64(maxCpus) && maxDiffIdleIndex >= 0 {
			delta := uint64(float64(diffUser+diffSystem+diffIdle) * (1 - exactCpus/float64(maxCpus)))

			idleSum = satSub(idleSum, delta)
			node.view[maxDiffIdleIndex].Idle = satSub(node.view[maxDiffIdleIndex].Idle, delta)
		}
	} else {
		for i := 0; i < nprocs; i++ {
			if !node.usage[i].Online {
				continue
			}

			node.view[i].User = node.usage[i].User
			node.view[i].System = node.usage[i].System
			node.view[i].Idle = node.usage[i].Idle

			userSum += node.view[i].User
			systemSum += node.view[i].System
			idleSum += node.view[i].Idle
		}
	}

	// Render the virtualized block followed by the rest of the host table.
	w := statWriter{buf: buf}
	w.writef("cpu  %d 0 %d %d 0 0 0 0 0 0\n", userSum, systemSum, idleSum)

	vis = -1
	for i := 0; i < nprocs; i++ {
		if !node.usage[i].Online {
			continue
		}
		vis++
		if maxCpus > 0 && vis == maxCpus {
			break
		}
		w.writef("cpu%d %d 0 %d %d 0 0 0 0 0 0\n", vis, node.view[i].User, node.view[i].System, node.view[i].Idle)
	}

	w.writeString(retained)
	rest, err := io.ReadAll(br)
	if err != nil {
		return 0, fmt.Errorf("reading host stat: %w", err)
	}
	w.write(rest)

	if w.err != nil {
		return 0, w.err
	}
	return w.n, nil
}

// imputeIdle walks the host per-CPU lines, derives each sampled CPU's idle
// time from the host counters and marks online state according to the
// cpuset and the host table. It returns the number of online CPUs in the
// cpuset and the first non-CPU line, which the renderer passes through.
func (r *Registry) imputeIdle(cg, cpusetList string, sample []Usage, br *bufio.Reader) (int, string) {
	cpuCnt := 0
	lastPhys := -1
	retained := ""

	for {
		line, readErr := br.ReadString('\n')
		if line == "" && readErr != nil {
			break
		}

		physcpu, fields, ok := parseCPULine(line)
		if !ok {
			retained = line
			break
		}

		if physcpu < 0 || physcpu >= len(sample) {
			if readErr != nil {
				break
			}
			continue
		}

		// CPUs missing from the table were hot unplugged.
		for i := lastPhys + 1; i < physcpu; i++ {
			sample[i].Online = false
		}
		if physcpu > lastPhys {
			lastPhys = physcpu
		}

		if !cpuset.Contains(physcpu, cpusetList) {
			sample[physcpu].Online = false
			if readErr != nil {
				break
			}
			continue
		}

		if fields == nil {
			r.log.Warnf("malformed host stat line for cpu%d, skipping: %q", physcpu, strings.TrimSpace(line))
			sample[physcpu].Online = false
			if readErr != nil {
				break
			}
			continue
		}

		cpuCnt++
		sample[physcpu].Online = true

		user, nice, system, idle := fields[0], fields[1], fields[2], fields[3]
		iowait, irq, softirq, steal := fields[4], fields[5], fields[6], fields[7]
		guest, guestNice := fields[8], fields[9]

		allUsed := user + nice + system + iowait + irq + softirq + steal + guest + guestNice
		cgUsed := sample[physcpu].User + sample[physcpu].System

		if allUsed >= cgUsed {
			sample[physcpu].Idle = idle + (allUsed - cgUsed)
		} else {
			r.log.Errorf("cpu%d from %s has unexpected cpu time: %d in /proc/stat, %d in cpuacct.usage_all; unable to determine idle time",
				physcpu, cg, allUsed, cgUsed)
			metrics.CPUViewClockSkewTotal.Inc()
			sample[physcpu].Idle = idle
		}

		if readErr != nil {
			break
		}
	}

	return cpuCnt, retained
}

// parseCPULine parses a "cpuN u n s i w q x t g gn" host stat line. ok is
// false for any line that does not name a single CPU; fields is nil when
// the line names a CPU but its counters are malformed.
func parseCPULine(line string) (physcpu int, fields *[10]uint64, ok bool) {
	rest, found := strings.CutPrefix(line, "cpu")
	if !found || len(rest) == 0 || rest[0] < '0' || rest[0] > '9' {
		return 0, nil, false
	}

	parts := strings.Fields(rest)
	cpu, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, nil, false
	}

	if len(parts) != 11 {
		return cpu, nil, true
	}
	var vals [10]uint64
	for i := 0; i < 10; i++ {
		v, err := strconv.ParseUint(parts[i+1], 10, 64)
		if err != nil {
			return cpu, nil, true
		}
		vals[i] = v
	}
	return cpu, &vals, true
}

// addCPUUsage credits surplus ticks to counter, bounded by the remaining
// headroom below threshold and by the CPU's own idle delta, which the
// credited time is carved out of.
func addCPUUsage(surplus *uint64, usage *Usage, counter *uint64, threshold uint64) {
	freeSpace := threshold - usage.User - usage.System

	if freeSpace > usage.Idle {
		freeSpace = usage.Idle
	}

	toAdd := freeSpace
	if *surplus < toAdd {
		toAdd = *surplus
	}

	*counter += toAdd
	usage.Idle -= toAdd
	*surplus -= toAdd
}

// statWriter appends rendered lines to a fixed capacity buffer. Writing
// past capacity is a hard failure surfaced after rendering.
type statWriter struct {
	buf []byte
	n   int
	err error
}

func (w *statWriter) writef(format string, args ...any) {
	if w.err != nil {
		return
	}
	w.write(fmt.Appendf(nil, format, args...))
}

func (w *statWriter) writeString(s string) {
	w.write([]byte(s))
}

func (w *statWriter) write(p []byte) {
	if w.err != nil {
		return
	}
	if w.n+len(p) > len(w.buf) {
		w.err = ErrBufferTooSmall
		return
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
}
