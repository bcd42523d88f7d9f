// Package metrics defines the Prometheus metrics exported on /metrics.
// Metrics are registered with the default registry at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "roadwatch"

// AuthActionsTotal counts dispatched auth actions.
// Labels:
//   - action: "sign_in", "sign_up", "oauth", "oauth_callback", "sign_out"
//   - result: "success", "invalid", "rate_limited", "breached", "failure"
var AuthActionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_actions_total",
		Help:      "Total number of auth actions, by action and result.",
	},
	[]string{"action", "result"},
)

// BreachChecksTotal counts password breach lookups.
// Label:
//   - result: "breached", "clean", "error", "disabled"
var BreachChecksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "breach_checks_total",
		Help:      "Total number of password breach checks, by result.",
	},
	[]string{"result"},
)

// BreachCacheTotal counts prefix cache lookups ("hit"/"miss").
var BreachCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "breach_cache_total",
		Help:      "Breach range cache lookups, by result.",
	},
	[]string{"result"},
)

// ThemePersistTotal counts where a toggled theme ended up.
// Label:
//   - store: "remote", "local", "none"
var ThemePersistTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "theme_persist_total",
		Help:      "Theme persistence outcomes, by store that holds the value.",
	},
	[]string{"store"},
)

// SessionResolutionsTotal counts protected page guards.
// Label:
//   - outcome: "proceed", "redirect", "error"
var SessionResolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_resolutions_total",
		Help:      "Session resolver outcomes on protected pages.",
	},
	[]string{"outcome"},
)

// TasksProcessedTotal counts background tasks by queue and result
// ("success", "failure", "dropped").
var TasksProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_processed_total",
		Help:      "Background tasks processed, by queue and result.",
	},
	[]string{"queue", "result"},
)
