package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"vibebuild/internal/shared/eventbus"
)

// upgrader WebSocket 升级器配置
//
// CheckOrigin 允许所有来源：频道访问控制由订阅令牌承担，
// 不依赖 Origin 头
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
	replayBatch  = int64(500)
)

// wsMessage 推送给客户端的消息帧
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// HandleWebSocket 处理 WebSocket 订阅请求
//
// 路由: GET /ws/runs/{id}/events
//
// 查询参数：
//   - token: 订阅令牌（启用令牌校验时必填）
//   - from_id: 起始事件 ID（可选），断线重连时回放该 ID 之后的事件
//
// 推送消息格式：
//
//	事件：{"type": "event", "data": {"id": "...", "topic": "log", "payload": {...}}}
//	终态：{"type": "status", "data": {"status": "done"}}
//
// 客户端消息：
//
//	心跳：{"type": "ping"} -> 响应 {"type": "pong"}
//
// 先订阅实时流再回放历史，按事件 ID 去重，保证重连窗口内
// 不丢也不重复推送
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		http.Error(w, "run_id required", http.StatusBadRequest)
		return
	}

	if s.tokens.Enabled() {
		if _, err := ParseSubscriptionToken(s.tokens, r.URL.Query().Get("token"), runID); err != nil {
			log.Printf("[Gateway] Subscription rejected: run=%s err=%v", runID, err)
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
	}

	fromID := r.URL.Query().Get("from_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()
	log.Printf("[Gateway] Subscriber connected: run=%s", runID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.readPump(conn, cancel)
	s.writePump(ctx, conn, runID, fromID)
}

// readPump 读取客户端消息
//
// 处理心跳请求并在客户端断开时取消写循环
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] WebSocket read error: %v", err)
			}
			return
		}

		var req map[string]interface{}
		if json.Unmarshal(msg, &req) == nil {
			if req["type"] == "ping" {
				conn.SetReadDeadline(time.Now().Add(pongTimeout))
				conn.WriteJSON(wsMessage{Type: "pong"})
			}
		}
	}
}

// writePump 向客户端推送事件
//
// 订阅先于回放建立，回放期间到达的实时事件先进通道缓冲；
// 两路都按最后已推送的事件 ID 去重
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, runID, fromID string) {
	liveCh, err := s.bus.SubscribeRunEvents(ctx, runID)
	if err != nil {
		log.Printf("[Gateway] Subscribe failed: run=%s err=%v", runID, err)
		return
	}

	lastID := fromID

	// 回放历史事件
	history, err := s.bus.GetRunEvents(ctx, runID, fromID, replayBatch)
	if err != nil {
		log.Printf("[Gateway] Event replay failed: run=%s err=%v", runID, err)
	}
	for _, ev := range history {
		if !s.forward(conn, ev) {
			return
		}
		lastID = ev.ID
		if ev.Topic == eventbus.TopicResult {
			s.sendDone(conn)
			return
		}
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-liveCh:
			if !ok {
				return
			}
			// 回放窗口内已经推送过的事件
			if lastID != "" && eventbus.CompareEventIDs(ev.ID, lastID) <= 0 {
				continue
			}
			if !s.forward(conn, ev) {
				return
			}
			lastID = ev.ID
			if ev.Topic == eventbus.TopicResult {
				s.sendDone(conn)
				return
			}
		}
	}
}

// forward 推送单条事件，返回 false 表示连接已不可写
func (s *Server) forward(conn *websocket.Conn, ev *eventbus.RunEvent) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(wsMessage{Type: "event", Data: ev}); err != nil {
		log.Printf("[Gateway] WebSocket write error: %v", err)
		return false
	}
	s.metrics.RecordEventForwarded(string(ev.Topic))
	return true
}

// sendDone 发送终态通知
//
// result 事件是流的终点：通知后主动收尾，客户端不必
// 等服务端超时
func (s *Server) sendDone(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteJSON(wsMessage{Type: "status", Data: map[string]string{"status": "done"}})
}
