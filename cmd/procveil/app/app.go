package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/procveil/procveil/pkg/cgroup"
	"github.com/procveil/procveil/pkg/cpuview"
	"github.com/procveil/procveil/pkg/logging"
	"github.com/procveil/procveil/pkg/proc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	LogLevel        string        `json:"logLevel"`
	LogRateInterval time.Duration `json:"logRateInterval"`
	LogRateBurst    int           `json:"logRateBurst"`
	Version         string        `json:"version"`
	HTTPListenPort  int           `json:"HTTPListenPort"`
	CgroupRoot      string        `json:"cgroupRoot"`
	ReadBufferSize  int           `json:"readBufferSize"`
}

func New(cfg *Config) *App {
	if cfg.CgroupRoot == "" {
		cfg.CgroupRoot = cgroup.DefaultRoot
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = 1 << 20
	}

	log := logging.New(&logging.Config{
		AddSource: true,
		Level:     logging.MustParseLevel(cfg.LogLevel),
		RateLimiter: logging.RateLimiterConfig{
			Limit:  rate.Every(cfg.LogRateInterval),
			Burst:  cfg.LogRateBurst,
			Inform: true,
		},
	})

	return &App{
		cfg: cfg,
		log: log,
	}
}

type App struct {
	cfg *Config
	log *logging.Logger

	registry *cpuview.Registry
	procFS   *proc.Proc
}

func (a *App) Run(ctx context.Context) error {
	a.log.Infof("running procveil, version=%s", a.cfg.Version)
	defer a.log.Infof("stopping procveil, version=%s", a.cfg.Version)

	cgroups, err := cgroup.NewClient(a.log, a.cfg.CgroupRoot)
	if err != nil {
		return err
	}

	a.registry = cpuview.NewRegistry(a.log, cgroups)
	defer a.registry.Shutdown()
	a.procFS = proc.New()

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		return a.runHTTPServer(ctx)
	})
	return errg.Wait()
}

func (a *App) runHTTPServer(ctx context.Context) error {
	a.log.Info("running http server")
	defer a.log.Info("stopping http server")

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("GET /v1/proc/{pid}/stat", a.handleProcStat)
	mux.HandleFunc("GET /v1/proc/{pid}/cpuinfo", a.handleProcCpuinfo)
	srv := http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.HTTPListenPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 1 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}

	return nil
}

func (a *App) handleProcStat(w http.ResponseWriter, req *http.Request) {
	pid, err := proc.ParsePID(req.PathValue("pid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := RenderProcStat(a.registry, a.procFS, pid, a.cfg.ReadBufferSize)
	if err != nil {
		a.log.Errorf("rendering stat view for pid %d: %v", pid, err)
		http.Error(w, "rendering cpu view failed", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(out)
}

func (a *App) handleProcCpuinfo(w http.ResponseWriter, req *http.Request) {
	pid, err := proc.ParsePID(req.PathValue("pid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := RenderProcCpuinfo(a.registry, a.procFS, pid, a.cfg.ReadBufferSize)
	if err != nil {
		a.log.Errorf("rendering cpuinfo view for pid %d: %v", pid, err)
		http.Error(w, "rendering cpuinfo view failed", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(out)
}

// RenderProcStat builds the virtualized /proc/stat view for the cgroup the
// process belongs to.
func RenderProcStat(registry *cpuview.Registry, procFS *proc.Proc, pid proc.PID, bufSize int) ([]byte, error) {
	cg, err := procFS.FindCgroupPathForPID(pid)
	if err != nil {
		return nil, fmt.Errorf("finding cgroup for pid %d: %w", pid, err)
	}

	cpus, err := registry.Cpuset(cg)
	if err != nil {
		return nil, fmt.Errorf("reading cpuset for %s: %w", cg, err)
	}

	sample, err := registry.ReadCPUAcctUsageAll(cg)
	if err != nil {
		return nil, err
	}

	f, err := procFS.OpenStat()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// The aggregate "cpu" line is replaced by the engine, skip it.
	br := bufio.NewReader(f)
	if _, err := br.ReadString('\n'); err != nil {
		return nil, fmt.Errorf("reading host stat: %w", err)
	}

	buf := make([]byte, bufSize)
	n, err := registry.ProcStat(cg, cpus, sample, br, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// RenderProcCpuinfo builds the virtualized /proc/cpuinfo view for the
// cgroup the process belongs to.
func RenderProcCpuinfo(registry *cpuview.Registry, procFS *proc.Proc, pid proc.PID, bufSize int) ([]byte, error) {
	cg, err := procFS.FindCgroupPathForPID(pid)
	if err != nil {
		return nil, fmt.Errorf("finding cgroup for pid %d: %w", pid, err)
	}

	cpus, err := registry.Cpuset(cg)
	if err != nil {
		return nil, fmt.Errorf("reading cpuset for %s: %w", cg, err)
	}

	f, err := procFS.OpenCpuinfo()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, bufSize)
	n, err := registry.ProcCpuinfo(cg, cpus, f, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
