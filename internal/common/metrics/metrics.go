// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_turns_processed_total",
			Help: "Total number of conversation turns processed, by decision kind and intent",
		},
		[]string{"decision_kind", "intent"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_stage_failures_total",
			Help: "Total number of pipeline stage failures, by stage and error code",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "agent_stage_duration_seconds",
			Help: "Duration of pipeline stage execution in seconds",
		},
		[]string{"stage"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_escalations_total",
			Help: "Total number of escalation decisions, by trigger",
		},
		[]string{"trigger"},
	)

	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_invocations_total",
			Help: "Total number of tool invocations, by tool and status",
		},
		[]string{"tool", "status"},
	)

	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_active_conversations",
			Help: "Number of conversations with a turn currently in flight",
		},
	)
)
