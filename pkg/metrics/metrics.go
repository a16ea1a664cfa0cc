package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// Agent 调用延迟（毫秒）
	AgentCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_call_latency_ms",
			Help:    "Agent service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"endpoint", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"operation", "table"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// WorkflowTransitionCount counts status change attempts per entity.
	// result: ok, invalid, conflict, not_found, error
	WorkflowTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transition_total",
			Help: "Project and phase status transitions by outcome",
		},
		[]string{"entity", "to", "result"},
	)

	// 级联副作用计数（notify / activity / auto_progress / auto_complete）
	WorkflowCascadeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_cascade_total",
			Help: "Cascade side effects executed after a transition",
		},
		[]string{"effect", "status"},
	)

	// 通知分发计数
	NotificationDispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Notifications handed to the sink or delivered by the worker",
		},
		[]string{"stage", "status"}, // stage: sink, deliver; status: ok, failed, duplicate
	)

	// 审计日志写入失败
	ActivityLogFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "activity_log_failures_total",
			Help: "Activity log writes that failed and were dropped",
		},
	)

	// 截止日期提醒
	DeadlineReminderCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deadline_reminder_total",
			Help: "Deadline reminders produced by the sweep",
		},
		[]string{"kind", "status"}, // kind: phase, deliverable; status: sent, suppressed, failed
	)

	// 文档生成计数
	DocumentGenerationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_generation_total",
			Help: "AI document generation requests",
		},
		[]string{"status"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordAgentCallLatency 记录 Agent 调用延迟
func RecordAgentCallLatency(endpoint, status string, duration time.Duration) {
	AgentCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(operation, table string) {
	SlowQueryCount.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementTransition(entity, to, result string) {
	WorkflowTransitionCount.WithLabelValues(entity, to, result).Inc()
}

func IncrementCascade(effect, status string) {
	WorkflowCascadeCount.WithLabelValues(effect, status).Inc()
}

func IncrementNotification(stage, status string) {
	NotificationDispatchCount.WithLabelValues(stage, status).Inc()
}

func IncrementActivityLogFailure() {
	ActivityLogFailures.Inc()
}

func IncrementDeadlineReminder(kind, status string) {
	DeadlineReminderCount.WithLabelValues(kind, status).Inc()
}

func IncrementDocumentGeneration(status string) {
	DocumentGenerationCount.WithLabelValues(status).Inc()
}
