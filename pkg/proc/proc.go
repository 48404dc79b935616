package proc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Path to proc filesystem.
const Path = "/proc"

func GetFS() ProcFS {
	// DirFS guarantees to return a fs.StatFS, fs.ReadFileFS and fs.ReadDirFS implementation, hence we can simply cast it here
	return os.DirFS(Path).(ProcFS)
}

type PID = uint32

type ProcFS interface {
	fs.ReadDirFS
	fs.ReadFileFS
	fs.StatFS
}

var (
	ErrNoCgroupPathFound = errors.New("no cgroup path found")
)

type Proc struct {
	procFS ProcFS
}

func New() *Proc {
	return &Proc{
		procFS: GetFS(),
	}
}

func NewFromFS(fs ProcFS) *Proc {
	return &Proc{
		procFS: fs,
	}
}

// FindCgroupPathForPID returns the cpuset cgroup path of the process, the
// hierarchy the cpu view engine keys its state on.
func (p *Proc) FindCgroupPathForPID(pid PID) (string, error) {
	cgroupData, err := p.procFS.ReadFile(fmt.Sprintf("%d/cgroup", pid))
	if err != nil {
		return "", err
	}

	var emptyFallback string

	for _, line := range strings.Split(string(cgroupData), "\n") {
		// Last line will be empty, we simply ignore it.
		if len(line) == 0 {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}
		if parts[1] == "cpuset" {
			return parts[2], nil
		}

		if parts[1] == "" {
			emptyFallback = parts[2]
		}
	}

	if emptyFallback != "" {
		return emptyFallback, nil
	}

	return "", ErrNoCgroupPathFound
}

// OpenStat opens the host /proc/stat table.
func (p *Proc) OpenStat() (io.ReadCloser, error) {
	return p.procFS.Open("stat")
}

// OpenCpuinfo opens the host /proc/cpuinfo table.
func (p *Proc) OpenCpuinfo() (io.ReadCloser, error) {
	return p.procFS.Open("cpuinfo")
}

// ParsePID parses a decimal process id, as found in procfs directory names.
func ParsePID(pidStr string) (PID, error) {
	pid, err := strconv.ParseUint(pidStr, 10, 32)
	if err != nil {
		return 0, err
	}

	return PID(pid), nil // nolint:gosec
}
