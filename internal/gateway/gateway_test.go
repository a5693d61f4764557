package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"vibebuild/internal/shared/eventbus"
)

func testTokens() TokenConfig {
	return TokenConfig{Secret: "test-secret", TTL: time.Minute}
}

// ============================================================================
// 订阅令牌
// ============================================================================

func TestSubscriptionTokenRoundTrip(t *testing.T) {
	cfg := testTokens()
	token, err := IssueSubscriptionToken(cfg, "run-abc-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := ParseSubscriptionToken(cfg, token, "run-abc-123")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Channel != "run:run-abc-123" {
		t.Errorf("channel = %q, want run:run-abc-123", claims.Channel)
	}
	if len(claims.Topics) != len(eventbus.Topics) {
		t.Errorf("topics = %v, want all %d topics", claims.Topics, len(eventbus.Topics))
	}
}

func TestSubscriptionTokenChannelMismatch(t *testing.T) {
	cfg := testTokens()
	token, err := IssueSubscriptionToken(cfg, "run-abc-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// 令牌只对签发时的 Run 有效
	if _, err := ParseSubscriptionToken(cfg, token, "run-other-456"); err == nil {
		t.Error("expected channel mismatch error")
	}
}

func TestSubscriptionTokenWrongSecret(t *testing.T) {
	token, err := IssueSubscriptionToken(testTokens(), "run-abc-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	other := TokenConfig{Secret: "other-secret", TTL: time.Minute}
	if _, err := ParseSubscriptionToken(other, token, "run-abc-123"); err == nil {
		t.Error("expected signature error")
	}
}

func TestSubscriptionTokenExpired(t *testing.T) {
	cfg := TokenConfig{Secret: "test-secret", TTL: -time.Minute}
	token, err := IssueSubscriptionToken(cfg, "run-abc-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := ParseSubscriptionToken(testTokens(), token, "run-abc-123"); err == nil {
		t.Error("expected expiry error")
	}
}

// ============================================================================
// HTTP 端点
// ============================================================================

func TestCreateSubscriptionTokenEndpoint(t *testing.T) {
	srv := NewServer(eventbus.NewMemoryEventBus(), testTokens(), nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/runs/run-abc-123/subscription-token", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var body struct {
		Token   string   `json:"token"`
		Channel string   `json:"channel"`
		Topics  []string `json:"topics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body.Channel != "run:run-abc-123" {
		t.Errorf("channel = %q", body.Channel)
	}
	if _, err := ParseSubscriptionToken(testTokens(), body.Token, "run-abc-123"); err != nil {
		t.Errorf("issued token does not validate: %v", err)
	}
}

func TestCreateSubscriptionTokenRejectsShortRunID(t *testing.T) {
	srv := NewServer(eventbus.NewMemoryEventBus(), testTokens(), nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/runs/abc/subscription-token", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// ============================================================================
// WebSocket
// ============================================================================

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dialRun(t *testing.T, ts *httptest.Server, runID, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/runs/"+runID+"/events?"+query), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func frameTopic(t *testing.T, msg wsMessage) string {
	t.Helper()
	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected frame data: %#v", msg.Data)
	}
	topic, _ := data["topic"].(string)
	return topic
}

func TestWebSocketReplayAndLiveTail(t *testing.T) {
	bus := eventbus.NewMemoryEventBus()
	ctx := context.Background()
	pub := eventbus.NewPublisher(bus, "run-ws-001")
	pub.Log(ctx, "[Agent] Iteration 1/18...")
	pub.Log(ctx, "> terminal: Installing.")

	cfg := testTokens()
	srv := NewServer(bus, cfg, nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	token, err := IssueSubscriptionToken(cfg, "run-ws-001")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	conn := dialRun(t, ts, "run-ws-001", "token="+token)
	defer conn.Close()

	// 历史事件按发布顺序回放
	for i := 0; i < 2; i++ {
		msg := readFrame(t, conn)
		if msg.Type != "event" || frameTopic(t, msg) != "log" {
			t.Fatalf("frame %d = %+v, want log event", i, msg)
		}
	}

	// 连接建立后发布的事件实时到达
	pub.Preview(ctx)
	msg := readFrame(t, conn)
	if frameTopic(t, msg) != "preview" {
		t.Fatalf("live frame = %+v, want preview event", msg)
	}

	// result 事件之后收到终态通知，连接由服务端收尾
	pub.Result(ctx, eventbus.ResultPayload{FragmentTitle: "Landing Page"})
	if got := frameTopic(t, readFrame(t, conn)); got != "result" {
		t.Fatalf("topic = %q, want result", got)
	}
	status := readFrame(t, conn)
	if status.Type != "status" {
		t.Fatalf("final frame = %+v, want status", status)
	}
}

func TestWebSocketResumeFromID(t *testing.T) {
	bus := eventbus.NewMemoryEventBus()
	ctx := context.Background()
	pub := eventbus.NewPublisher(bus, "run-ws-002")
	pub.Log(ctx, "line 1")
	pub.Log(ctx, "line 2")
	firstID := bus.Events("run-ws-002")[0].ID

	cfg := testTokens()
	srv := NewServer(bus, cfg, nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	token, err := IssueSubscriptionToken(cfg, "run-ws-002")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	conn := dialRun(t, ts, "run-ws-002", "token="+token+"&from_id="+firstID)
	defer conn.Close()

	// 从 from_id 之后恢复，第一条不再重放
	msg := readFrame(t, conn)
	data := msg.Data.(map[string]interface{})
	payload := data["payload"].(map[string]interface{})
	if payload["line"] != "line 2" {
		t.Fatalf("resumed frame = %+v, want line 2", payload)
	}
}

func TestWebSocketLiveTailAfterLongReplay(t *testing.T) {
	bus := eventbus.NewMemoryEventBus()
	ctx := context.Background()
	pub := eventbus.NewPublisher(bus, "run-ws-010")
	for i := 1; i <= 9; i++ {
		pub.Log(ctx, fmt.Sprintf("[Agent] Iteration %d/18...", i))
	}

	cfg := testTokens()
	srv := NewServer(bus, cfg, nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	token, err := IssueSubscriptionToken(cfg, "run-ws-010")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	conn := dialRun(t, ts, "run-ws-010", "token="+token)
	defer conn.Close()

	for i := 0; i < 9; i++ {
		if got := frameTopic(t, readFrame(t, conn)); got != "log" {
			t.Fatalf("replay frame %d topic = %q, want log", i, got)
		}
	}

	// 第 10 条事件的 ID "10-0" 字典序排在 "9-0" 前面，
	// 去重必须按数值比较，result 不能被吞掉
	pub.Result(ctx, eventbus.ResultPayload{FragmentTitle: "Landing Page"})
	if got := frameTopic(t, readFrame(t, conn)); got != "result" {
		t.Fatalf("topic = %q, want result", got)
	}
	status := readFrame(t, conn)
	if status.Type != "status" {
		t.Fatalf("final frame = %+v, want status", status)
	}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	srv := NewServer(eventbus.NewMemoryEventBus(), testTokens(), nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/runs/run-ws-003/events"), nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %+v, want 401", resp)
	}
}

func TestWebSocketNoAuthMode(t *testing.T) {
	bus := eventbus.NewMemoryEventBus()
	eventbus.NewPublisher(bus, "run-ws-004").Log(context.Background(), "hello")

	// 未配置密钥时不校验令牌
	srv := NewServer(bus, TokenConfig{}, nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	conn := dialRun(t, ts, "run-ws-004", "")
	defer conn.Close()
	if got := frameTopic(t, readFrame(t, conn)); got != "log" {
		t.Fatalf("topic = %q, want log", got)
	}
}

func TestWebSocketPing(t *testing.T) {
	bus := eventbus.NewMemoryEventBus()
	srv := NewServer(bus, TokenConfig{}, nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	conn := dialRun(t, ts, "run-ws-005", "")
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	msg := readFrame(t, conn)
	if msg.Type != "pong" {
		t.Fatalf("frame = %+v, want pong", msg)
	}
}

// ============================================================================
// 指标
// ============================================================================

func TestHTTPRequestMetrics(t *testing.T) {
	m := NewMetrics("gateway_test")
	srv := NewServer(eventbus.NewMemoryEventBus(), testTokens(), m)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/runs/run-abc-123/subscription-token", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/runs/{id}/subscription-token", "201"))
	if got != 1 {
		t.Errorf("http_requests_total = %v, want 1", got)
	}
	if tokens := testutil.ToFloat64(m.TokensIssued); tokens != 1 {
		t.Errorf("subscription_tokens_issued_total = %v, want 1", tokens)
	}
}
