package cpuview

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/procveil/procveil/pkg/cpuset"
)

// ProcCpuinfo renders a virtualized /proc/cpuinfo for the cgroup into buf:
// processor blocks outside the cpuset are dropped, the remaining ones are
// renumbered contiguously and, when a quota is set, the view stops after
// MaxCPUCount processors.
func (r *Registry) ProcCpuinfo(cg, cpusetList string, hostCpuinfo io.Reader, buf []byte) (int, error) {
	maxCpus := int(r.MaxCPUCount(cg))

	w := statWriter{buf: buf}
	br := bufio.NewReader(hostCpuinfo)
	printing := false
	curcpu := -1

	for {
		line, readErr := br.ReadString('\n')
		if line == "" && readErr != nil {
			break
		}

		if cpu, ok := parseProcessorLine(line); ok {
			if maxCpus > 0 && curcpu+1 == maxCpus {
				break
			}
			printing = cpuset.Contains(cpu, cpusetList)
			if printing {
				curcpu++
				w.writef("processor\t: %d\n", curcpu)
			}
		} else if printing {
			w.writeString(line)
		}

		if readErr != nil {
			break
		}
	}

	if w.err != nil {
		r.log.Errorf("rendering cpuinfo view for %s: %v", cg, w.err)
		return 0, w.err
	}
	return w.n, nil
}

// parseProcessorLine matches the "processor : N" block header lines of
// /proc/cpuinfo.
func parseProcessorLine(line string) (int, bool) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "processor" || fields[1] != ":" {
		return 0, false
	}
	cpu, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, false
	}
	return cpu, true
}
