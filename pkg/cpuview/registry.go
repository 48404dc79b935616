package cpuview

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/procveil/procveil/pkg/logging"
	"github.com/procveil/procveil/pkg/metrics"
	"github.com/procveil/procveil/pkg/system"
)

const (
	hashSize      = 100
	pruneInterval = 10 * time.Second
)

// cgStat is the long lived state of one cgroup: the reconciled real usage
// and the view accumulator rendered to readers. All fields are guarded by
// mu, held across an entire read-reconcile-render cycle.
type cgStat struct {
	cg       string
	usage    []Usage
	view     []Usage
	cpuCount int
	mu       sync.Mutex
}

// bucket owns the nodes hashing to it. Lookups take the read lock,
// structural changes (insert, prune) take the write lock.
type bucket struct {
	mu        sync.RWMutex
	nodes     map[string]*cgStat
	lastCheck time.Time
}

// Registry is the process wide cache of per-cgroup stat nodes.
type Registry struct {
	log     *logging.Logger
	cgroups CgroupReader
	buckets [hashSize]*bucket

	nprocsConf   func() int
	nprocsOnline func() int
}

type Option func(*Registry)

// WithNprocs overrides how the registry queries host CPU counts.
func WithNprocs(conf, online func() int) Option {
	return func(r *Registry) {
		r.nprocsConf = conf
		r.nprocsOnline = online
	}
}

func NewRegistry(log *logging.Logger, cgroups CgroupReader, opts ...Option) *Registry {
	r := &Registry{
		log:          log.WithField("component", "cpuview"),
		cgroups:      cgroups,
		nprocsConf:   system.NprocsConf,
		nprocsOnline: system.NprocsOnline,
	}
	now := time.Now()
	for i := range r.buckets {
		r.buckets[i] = &bucket{
			nodes:     map[string]*cgStat{},
			lastCheck: now,
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Shutdown drops all cached nodes. The registry must not be used afterwards.
func (r *Registry) Shutdown() {
	for _, b := range r.buckets {
		b.mu.Lock()
		b.nodes = map[string]*cgStat{}
		b.mu.Unlock()
	}
}

func (r *Registry) bucketFor(cg string) *bucket {
	return r.buckets[uint32(xxhash.Sum64String(cg))%hashSize] // nolint:gosec
}

// findOrCreateNode returns the stat node for cg with its mutex held. The
// caller must unlock it when the read cycle is done. A new node starts with
// zeroed accumulators, so the first read reports the cgroup's full
// cumulative usage.
func (r *Registry) findOrCreateNode(cg string, nprocs int) *cgStat {
	b := r.bucketFor(cg)

	b.mu.RLock()
	node := b.nodes[cg]
	b.mu.RUnlock()

	r.prune()

	if node == nil {
		fresh := newNode(cg, nprocs)
		b.mu.Lock()
		if existing := b.nodes[cg]; existing != nil {
			// Lost the insert race, keep the published node.
			node = existing
		} else {
			b.nodes[cg] = fresh
			node = fresh
			metrics.CPUViewNodesCreatedTotal.Inc()
			r.log.Debugf("new stat node (%d) for %s", nprocs, cg)
		}
		b.mu.Unlock()
	}

	node.mu.Lock()

	// If additional CPUs on the host have been enabled, CPU usage counter
	// arrays have to be expanded.
	if node.cpuCount < nprocs {
		r.log.Debugf("expanding stat node %d->%d for %s", node.cpuCount, nprocs, cg)
		node.expand(nprocs)
	}

	return node
}

// prune drops nodes whose cgroup no longer exists, at most once per bucket
// per pruneInterval. It runs opportunistically on reader paths.
func (r *Registry) prune() {
	now := time.Now()
	for _, b := range r.buckets {
		b.mu.RLock()
		due := now.Sub(b.lastCheck) >= pruneInterval
		b.mu.RUnlock()
		if !due {
			continue
		}

		b.mu.Lock()
		if now.Sub(b.lastCheck) < pruneInterval {
			b.mu.Unlock()
			continue
		}
		for cg := range b.nodes {
			if !r.cgroups.ParamExists("cpu", cg, "cpu.shares") {
				r.log.Debugf("removing stat node for %s", cg)
				delete(b.nodes, cg)
				metrics.CPUViewNodesPrunedTotal.Inc()
			}
		}
		b.lastCheck = now
		b.mu.Unlock()
	}
}

func newNode(cg string, cpuCount int) *cgStat {
	return &cgStat{
		cg:       cg,
		usage:    make([]Usage, cpuCount),
		view:     make([]Usage, cpuCount),
		cpuCount: cpuCount,
	}
}

// reset rebases the node after a cgroup counter regression: accumulators
// start over so the next delta is the recreated cgroup's own usage.
func (n *cgStat) reset(cpuCount int) {
	for i := range n.usage {
		n.usage[i] = Usage{}
	}
	for i := range n.view {
		n.view[i] = Usage{}
	}
	n.cpuCount = cpuCount
}

// expand grows the counter arrays in place after CPU hotplug. Arrays never
// shrink; existing counters are preserved and new slots start at zero.
func (n *cgStat) expand(cpuCount int) {
	usage := make([]Usage, cpuCount)
	view := make([]Usage, cpuCount)
	copy(usage, n.usage)
	copy(view, n.view)
	n.usage = usage
	n.view = view
	n.cpuCount = cpuCount
}
