package network

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Pedro-5D/planchis/pkg/log"
)

// Config 描述接入层在连接层面的配置。
//
// 说明：
//   - SendQueueSize 控制每个连接的发送缓冲队列大小；
//   - PingInterval/PongTimeout 控制心跳周期与等待 Pong 的超时；
//   - WriteTimeout 控制单次写操作的超时时间（为 0 表示不设置 deadline）；
//   - Path 控制 WebSocket 的升级路径（如 "/"）。
type Config struct {
	SendQueueSize int

	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration

	Path string

	// Upgrader 允许调用方自定义 gorilla/websocket 的升级行为。
	// 若为 nil，则使用内部默认的 Upgrader。
	Upgrader *websocket.Upgrader
}

// DefaultConfig 返回默认的接入层配置。
func DefaultConfig() Config {
	return Config{
		SendQueueSize: 256,
		PingInterval:  20 * time.Second,
		PongTimeout:   20 * time.Second,
		WriteTimeout:  15 * time.Second,
		Path:          "/",
	}
}

// Acceptor 是服务器侧的 WebSocket 接入层。
//
// 职责：
//   - 在指定 listener 上监听 HTTP，并处理 WebSocket 升级；
//   - 为每个连接创建 Session，并调用 Handler 的各阶段回调；
//   - 同一连接上 OnMessage 串行执行。
type Acceptor struct {
	cfg      Config
	h        Handler
	upgrader *websocket.Upgrader

	srv *http.Server
}

// NewAcceptor 创建一个接入器。cfg 的零值字段会被替换为默认值。
func NewAcceptor(cfg Config, h Handler) *Acceptor {
	def := DefaultConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}

	upgrader := cfg.Upgrader
	if upgrader == nil {
		upgrader = &websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// 客户端来自任意站点，接入层不做同源限制。
			CheckOrigin: func(*http.Request) bool { return true },
		}
	}

	return &Acceptor{
		cfg:      cfg,
		h:        h,
		upgrader: upgrader,
	}
}

// ServeHTTP 实现 http.Handler，处理 WebSocket 升级并驱动连接生命周期。
func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.cfg.Path != "" && r.URL.Path != a.cfg.Path {
		http.NotFound(w, r)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已向客户端写入了错误响应，这里只记录日志。
		log.Warn("websocket upgrade failed",
			zap.String("remoteAddr", r.RemoteAddr),
			zap.String("stage", string(StageHandshake)),
			zap.Error(err))
		return
	}

	// 升级后的连接脱离 HTTP 请求生命周期，
	// 关闭由 Session 自身（读写错误、心跳超时、Close）驱动。
	sess := newWSSession(context.Background(), conn, a.cfg, a.h)
	log.Info("connection accepted",
		zap.Uint64("connID", sess.ID()),
		zap.String("remoteAddr", sess.RemoteAddr()))

	a.h.OnConnected(sess)
	sess.run()
}

// Serve 在给定 listener 上启动 HTTP 服务，阻塞直至 ctx 取消或出现致命错误。
func (a *Acceptor) Serve(ctx context.Context, ln net.Listener) error {
	a.srv = &http.Server{
		Handler: a,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Close 主动关闭监听器与所有连接。
func (a *Acceptor) Close() error {
	if a.srv == nil {
		return nil
	}
	return a.srv.Close()
}
