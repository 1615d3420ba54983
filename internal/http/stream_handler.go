package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ericalderman-safeloop/safeloop-care/internal/domain"
	"github.com/ericalderman-safeloop/safeloop-care/internal/realtime"
	"github.com/ericalderman-safeloop/safeloop-care/internal/repository"
	"github.com/ericalderman-safeloop/safeloop-care/internal/service"

	"go.uber.org/zap"
)

// streamHeartbeat SSE 心跳间隔（穿透代理的 idle timeout）
const streamHeartbeat = 30 * time.Second

// StreamHandler 变更流 Handler（SSE）
// app 在前台时保持连接；收到事件后按 table 重新拉取对应列表
// 断开即取消订阅，重连由 app 端负责
type StreamHandler struct {
	feed      *realtime.Feed
	auth      service.AuthService
	usersRepo repository.UsersRepository
	logger    *zap.Logger
}

// NewStreamHandler 创建变更流 Handler
func NewStreamHandler(feed *realtime.Feed, auth service.AuthService, usersRepo repository.UsersRepository, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		feed:      feed,
		auth:      auth,
		usersRepo: usersRepo,
		logger:    logger,
	}
}

// streamTables 合法的订阅表名
var streamTables = map[string]bool{
	realtime.TableWearers:      true,
	realtime.TableDevices:      true,
	realtime.TableHelpRequests: true,
}

// ServeHTTP 处理 GET /app/api/v1/changes?tables=wearers,help_requests
// EventSource 无法携带自定义头，token 允许经 query 传入
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing token"))
		return
	}

	sess, err := h.auth.GetSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) {
			writeJSON(w, http.StatusUnauthorized, Result[any]{
				Code:    ResultSessionExpired,
				Type:    "error",
				Message: "session expired",
			})
			return
		}
		writeJSON(w, http.StatusOK, Fail("session lookup failed"))
		return
	}
	profile, err := h.usersRepo.GetProfileByIdentity(r.Context(), sess.IdentityID)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("profile setup required"))
		return
	}

	tables := parseTables(r.URL.Query().Get("tables"))
	if len(tables) == 0 {
		writeJSON(w, http.StatusOK, Fail("no valid tables requested"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusOK, Fail("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()

	// 多表订阅合并到单一通道
	merged := make(chan realtime.ChangeEvent, 16)
	for _, table := range tables {
		ch := h.feed.Subscribe(ctx, table, profile.AccountID)
		go func() {
			for ev := range ch {
				select {
				case merged <- ev:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	h.logger.Info("Change stream opened",
		zap.String("account_id", profile.AccountID),
		zap.String("user_id", profile.UserID),
		zap.Strings("tables", tables),
	)

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Change stream closed",
				zap.String("user_id", profile.UserID),
			)
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev := <-merged:
			raw, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

// parseTables 解析 tables 参数；为空时订阅全部表
func parseTables(param string) []string {
	if strings.TrimSpace(param) == "" {
		return []string{realtime.TableWearers, realtime.TableDevices, realtime.TableHelpRequests}
	}
	var tables []string
	for _, t := range strings.Split(param, ",") {
		t = strings.TrimSpace(t)
		if streamTables[t] {
			tables = append(tables, t)
		}
	}
	return tables
}
