package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vibebuild/internal/shared/eventbus"
	"vibebuild/internal/shared/model"
)

// Server 实时事件网关
//
// 职责：
//   - 签发 runId 限定的订阅令牌
//   - 校验令牌并把事件流推送给 WebSocket 客户端
//   - 导出 Prometheus 指标
//
// 网关不写事件流，也不触碰数据库：它只读 Redis Streams，
// 和 Worker 之间没有任何直接耦合
type Server struct {
	bus     eventbus.RunEventBus
	tokens  TokenConfig
	metrics *Metrics
}

// NewServer 创建网关实例；metrics 可为 nil
func NewServer(bus eventbus.RunEventBus, tokens TokenConfig, metrics *Metrics) *Server {
	return &Server{bus: bus, tokens: tokens, metrics: metrics}
}

// Routes 注册全部路由
//
// WebSocket 路由不走请求计数：连接升级后由 ws_* 指标跟踪
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/runs/{id}/subscription-token", s.instrument("/v1/runs/{id}/subscription-token", s.CreateSubscriptionToken))
	mux.HandleFunc("GET /ws/runs/{id}/events", s.HandleWebSocket)
	mux.HandleFunc("GET /health", s.instrument("/health", s.Health))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// instrument 按路由模板记录请求计数
func (s *Server) instrument(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.RecordHTTPRequest(r.Method, pattern, strconv.Itoa(rec.status))
	}
}

// statusRecorder 捕获写入的状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// CreateSubscriptionToken 签发订阅令牌
//
// 路由: POST /v1/runs/{id}/subscription-token
//
// 响应:
//
//	{
//	  "token": "...",
//	  "channel": "run:<runId>",
//	  "topics": ["progress", "log", "result", "preview"],
//	  "expires_in_seconds": 900
//	}
func (s *Server) CreateSubscriptionToken(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if len(runID) < model.MinRunIDLength {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	token, err := IssueSubscriptionToken(s.tokens, runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	s.metrics.RecordTokenIssued()

	topics := make([]string, len(eventbus.Topics))
	for i, t := range eventbus.Topics {
		topics[i] = string(t)
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token":              token,
		"channel":            RunChannel(runID),
		"topics":             topics,
		"expires_in_seconds": int(s.tokens.ttl().Seconds()),
	})
}

// Health 健康检查
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以 JSON 格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
