package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CPUViewReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procveil_cpuview_reads_total",
		Help: "Counter for tracking rendered cpu view reads",
	})

	CPUViewReadErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procveil_cpuview_read_errors_total",
		Help: "Counter for tracking failed cpu view reads",
	})

	CPUViewNodesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procveil_cpuview_nodes_created_total",
		Help: "Counter for tracking created per cgroup stat nodes",
	})

	CPUViewNodesPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procveil_cpuview_nodes_pruned_total",
		Help: "Counter for tracking stat nodes removed for deleted cgroups",
	})

	CPUViewNodeResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procveil_cpuview_node_resets_total",
		Help: "Counter for tracking stat node resets after cgroup counter regression",
	})

	CPUViewClockSkewTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procveil_cpuview_clock_skew_total",
		Help: "Counter for tracking samples where cgroup cpu time exceeded host cpu time",
	})

	CPUAcctFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procveil_cpuacct_usage_percpu_fallbacks_total",
		Help: "Counter for tracking reads served from cpuacct.usage_percpu instead of cpuacct.usage_all",
	})
)
