// Package observability holds the Prometheus metrics for the reward and
// ledger paths. Metrics register on the default registry via promauto and
// are served by the API's /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RewardsGranted counts REWARD transactions actually written —
	// duplicate grants suppressed by the idempotency key do not count.
	RewardsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaizen_rewards_granted_total",
		Help: "Number of goal rewards credited.",
	})

	// RewardAmountPaid accumulates the currency amount of granted rewards.
	RewardAmountPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaizen_reward_amount_paid_total",
		Help: "Total currency credited by goal rewards.",
	})

	// LedgerOps counts ledger operations by kind and outcome.
	LedgerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaizen_ledger_operations_total",
		Help: "Ledger operations by operation and outcome.",
	}, []string{"op", "outcome"})

	// EntriesLogged counts persisted entry mutations by kind.
	EntriesLogged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaizen_entries_total",
		Help: "Entry mutations by kind (create, update, delete).",
	}, []string{"kind"})

	// AuditRuns counts completed ledger audits.
	AuditRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaizen_ledger_audit_runs_total",
		Help: "Completed ledger audit sweeps.",
	})

	// AuditDriftUsers reports how many users failed the balance invariant
	// in the most recent audit. Anything above zero is an incident.
	AuditDriftUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kaizen_ledger_audit_drift_users",
		Help: "Users whose balance differs from their transaction sum.",
	})
)

// ObserveLedgerOp records one ledger operation outcome.
func ObserveLedgerOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LedgerOps.WithLabelValues(op, outcome).Inc()
}
