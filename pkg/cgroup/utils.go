package cgroup

import (
	"os"
	"path"
)

type parseError struct {
	Path string
	File string
	Err  error
}

func (e *parseError) Error() string {
	return "unable to parse " + path.Join(e.Path, e.File) + ": " + e.Err.Error()
}

func (e *parseError) Unwrap() error { return e.Err }

func readCgroupFile(dirPath, fileName string) (string, error) {
	data, err := os.ReadFile(path.Join(dirPath, fileName))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
