package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API/Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		AgentRunsTotal, AgentTurnsTotal,
		ToolCallsTotal, ToolDuration,
		LLMRequestsTotal, IngestEventsTotal,
		RateLimitWaitSeconds, LLMCacheTotal,
	)
}

// AgentRunsTotal Agent 对话总数（按结果）
var AgentRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "logagent_agent_runs_total",
		Help: "Agent 对话总数（按结果）",
	},
	[]string{"outcome"}, // done | inconclusive | timeout | upstream | canceled
)

// AgentTurnsTotal 模型往返轮数
var AgentTurnsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "logagent_agent_turns_total",
		Help: "Agent 模型往返轮数",
	},
)

// ToolCallsTotal 工具调用次数（按状态）
var ToolCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "logagent_tool_calls_total",
		Help: "工具调用次数",
	},
	[]string{"tool", "status"}, // ok | error | unknown
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "logagent_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// LLMRequestsTotal LLM 请求次数
var LLMRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "logagent_llm_requests_total",
		Help: "LLM 请求次数",
	},
	[]string{"provider", "outcome"}, // ok | error
)

// LLMCacheTotal LLM 结果缓存命中情况
var LLMCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "logagent_llm_cache_total",
		Help: "LLM 结果缓存查询次数",
	},
	[]string{"result"}, // hit | miss | error
)

// IngestEventsTotal 已入库日志事件数
var IngestEventsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "logagent_ingest_events_total",
		Help: "已入库日志事件数",
	},
)

// RateLimitWaitSeconds 限流等待耗时
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "logagent_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
	},
	[]string{"kind", "name"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
