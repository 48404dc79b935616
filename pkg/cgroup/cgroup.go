package cgroup

import "errors"

var (
	ErrNotSupported = errors.New("cgroup file has no unified hierarchy equivalent")
)

const (
	// DefaultRoot is where the kernel mounts cgroupfs on most distributions.
	DefaultRoot = "/sys/fs/cgroup"

	cgroupControllersFile = "cgroup.controllers"
)

type Version uint8

func (v Version) String() string {
	if v == V1 {
		return "V1"
	}
	if v == V2 {
		return "V2"
	}
	return ""
}

const (
	V1 = iota
	V2
)
