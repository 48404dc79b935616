package cgroup

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/procveil/procveil/pkg/logging"
	"golang.org/x/sys/unix"
)

// Client reads cgroup control files by their v1 names. On a unified (v2)
// hierarchy the requested file is mapped to its closest equivalent, so
// callers can stay on the v1 vocabulary regardless of the host setup.
type Client struct {
	version Version
	root    string
}

func NewClient(log *logging.Logger, root string) (*Client, error) {
	version, err := detectVersion(root)
	if err != nil {
		return nil, fmt.Errorf("detecting cgroups version: %w", err)
	}
	log.WithField("component", "cgroup").Infof("cgroups detected version=%s, root=%s", version, root)
	return &Client{
		version: version,
		root:    root,
	}, nil
}

func (c *Client) Version() Version {
	return c.version
}

// Get returns the raw text of a single cgroup control file.
func (c *Client) Get(controller, cg, file string) (string, error) {
	if c.version == V2 {
		return c.getV2(cg, file)
	}
	return readCgroupFile(path.Join(c.root, controller, cg), file)
}

// ParamExists probes whether a control file is present for the cgroup. It is
// used by the stat node pruner to detect deleted cgroups.
func (c *Client) ParamExists(controller, cg, file string) bool {
	var p string
	if c.version == V2 {
		mapped, ok := v2FileName(file)
		if !ok {
			return false
		}
		p = path.Join(c.root, cg, mapped)
	} else {
		p = path.Join(c.root, controller, cg, file)
	}
	return unix.Access(p, unix.F_OK) == nil
}

func (c *Client) getV2(cg, file string) (string, error) {
	dir := path.Join(c.root, cg)
	switch file {
	case "cpu.cfs_quota_us":
		quota, _, err := readCPUMax(dir)
		if err != nil {
			return "", err
		}
		return quota, nil
	case "cpu.cfs_period_us":
		_, period, err := readCPUMax(dir)
		if err != nil {
			return "", err
		}
		return period, nil
	}
	mapped, ok := v2FileName(file)
	if !ok {
		return "", fmt.Errorf("%s: %w", file, ErrNotSupported)
	}
	return readCgroupFile(dir, mapped)
}

func v2FileName(file string) (string, bool) {
	switch file {
	case "cpu.shares":
		return "cpu.weight", true
	case "cpuset.cpus":
		return "cpuset.cpus.effective", true
	case "cpu.cfs_quota_us", "cpu.cfs_period_us":
		return "cpu.max", true
	default:
		// Per-CPU cpuacct accounting has no unified hierarchy counterpart.
		return "", false
	}
}

// readCPUMax splits "cpu.max" into v1 style quota and period strings. An
// unlimited quota is reported as -1, matching cpu.cfs_quota_us semantics.
func readCPUMax(dir string) (quota string, period string, err error) {
	content, err := readCgroupFile(dir, "cpu.max")
	if err != nil {
		return "", "", err
	}
	fields := strings.Fields(content)
	if len(fields) != 2 {
		return "", "", &parseError{Path: dir, File: "cpu.max", Err: fmt.Errorf("unexpected content %q", content)}
	}
	if fields[0] == "max" {
		fields[0] = "-1"
	}
	return fields[0], fields[1], nil
}

func detectVersion(root string) (Version, error) {
	_, err := os.Stat(path.Join(root, cgroupControllersFile))
	if err == nil {
		return V2, nil
	}
	if os.IsNotExist(err) {
		return V1, nil
	}
	return 0, err
}
