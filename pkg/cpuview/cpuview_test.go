package cpuview

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/procveil/procveil/pkg/logging"
	"github.com/stretchr/testify/require"
)

// fakeCgroupFS implements CgroupReader on an in-memory file map.
type fakeCgroupFS struct {
	mu    sync.Mutex
	files map[string]string
}

func newFakeCgroupFS() *fakeCgroupFS {
	return &fakeCgroupFS{files: map[string]string{}}
}

func (f *fakeCgroupFS) key(controller, cg, file string) string {
	return controller + ":" + cg + ":" + file
}

func (f *fakeCgroupFS) set(controller, cg, file, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[f.key(controller, cg, file)] = content
}

func (f *fakeCgroupFS) removeCgroup(cg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.files {
		parts := strings.SplitN(k, ":", 3)
		if len(parts) == 3 && parts[1] == cg {
			delete(f.files, k)
		}
	}
}

func (f *fakeCgroupFS) Get(controller, cg, file string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[f.key(controller, cg, file)]
	if !ok {
		return "", fmt.Errorf("%s/%s/%s: %w", controller, cg, file, os.ErrNotExist)
	}
	return content, nil
}

func (f *fakeCgroupFS) ParamExists(controller, cg, file string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[f.key(controller, cg, file)]
	return ok
}

// setPolicy installs the usual v1 control files for a cgroup.
func setPolicy(fs *fakeCgroupFS, cg string, quota, period int64, cpus string) {
	fs.set("cpu", cg, "cpu.cfs_quota_us", fmt.Sprintf("%d\n", quota))
	fs.set("cpu", cg, "cpu.cfs_period_us", fmt.Sprintf("%d\n", period))
	fs.set("cpu", cg, "cpu.shares", "1024\n")
	if cpus != "" {
		fs.set("cpuset", cg, "cpuset.cpus", cpus+"\n")
	}
}

func newTestRegistry(fs CgroupReader, conf, online int) *Registry {
	return NewRegistry(logging.NewTestLog(), fs, WithNprocs(
		func() int { return conf },
		func() int { return online },
	))
}

func renderStat(t *testing.T, r *Registry, cg string, sample []Usage, host string) string {
	t.Helper()
	cpus, err := r.Cpuset(cg)
	if err != nil {
		cpus = ""
	}
	return renderStatCpuset(t, r, cg, cpus, sample, host)
}

func renderStatCpuset(t *testing.T, r *Registry, cg, cpus string, sample []Usage, host string) string {
	t.Helper()
	buf := make([]byte, 64*1024)
	n, err := r.ProcStat(cg, cpus, sample, strings.NewReader(host), buf)
	require.NoError(t, err)
	return string(buf[:n])
}
