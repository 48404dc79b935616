package main

import (
	"fmt"
	"os"

	"github.com/procveil/procveil/cmd/procveil/app"
	"github.com/procveil/procveil/pkg/cgroup"
	"github.com/procveil/procveil/pkg/cpuview"
	"github.com/procveil/procveil/pkg/logging"
	"github.com/procveil/procveil/pkg/proc"
	"github.com/spf13/cobra"
)

// NewViewCommand renders a single virtualized view to stdout, mostly useful
// for debugging what a container would see.
func NewViewCommand() *cobra.Command {
	var (
		pid        uint32
		file       string
		cgroupRoot string
	)

	command := &cobra.Command{
		Use: "view",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(&logging.Config{Level: logging.MustParseLevel("WARN")})

			cgroups, err := cgroup.NewClient(log, cgroupRoot)
			if err != nil {
				return err
			}

			registry := cpuview.NewRegistry(log, cgroups)
			defer registry.Shutdown()
			procFS := proc.New()

			if pid == 0 {
				pid = uint32(os.Getpid()) // nolint:gosec
			}

			var out []byte
			switch file {
			case "stat":
				out, err = app.RenderProcStat(registry, procFS, pid, 1<<20)
			case "cpuinfo":
				out, err = app.RenderProcCpuinfo(registry, procFS, pid, 1<<20)
			default:
				return fmt.Errorf("unknown file %q, expected stat or cpuinfo", file)
			}
			if err != nil {
				return err
			}

			_, err = os.Stdout.Write(out)
			return err
		},
	}

	command.Flags().Uint32Var(&pid, "pid", 0, "Process whose cgroup view to render, defaults to the current process")
	command.Flags().StringVar(&file, "file", "stat", "Which proc file to render: stat or cpuinfo")
	command.Flags().StringVar(&cgroupRoot, "cgroup-root", cgroup.DefaultRoot, "Path to the host cgroupfs mount")
	return command
}
