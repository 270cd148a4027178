// Package status 提供 HTTP 健康检查、运行状态与指标暴露能力。
package status

import (
	"context"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/Pedro-5D/planchis/internal/json"
	"github.com/Pedro-5D/planchis/pkg/log"
	"github.com/Pedro-5D/planchis/pkg/version"
)

// StatsProvider 提供业务侧的运行统计。由 game.Registry 实现。
type StatsProvider interface {
	Stats() (games, connections, lobby int)
}

// Overview 为 /status 返回的运行状态快照。
type Overview struct {
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptimeSeconds"`

	Games       int `json:"games"`
	Connections int `json:"connections"`
	LobbyGames  int `json:"lobbyGames"`

	Goroutines int     `json:"goroutines"`
	MemoryRSS  uint64  `json:"memoryRss"`
	CPUPercent float64 `json:"cpuPercent"`
}

// Server 承载 /healthz、/status 与 /metrics 三个运维端点。
type Server struct {
	provider StatsProvider
	start    time.Time

	srv *http.Server
}

func NewServer(provider StatsProvider) *Server {
	return &Server{
		provider: provider,
		start:    time.Now(),
	}
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	games, connections, lobby := s.provider.Stats()

	overview := Overview{
		Version:       version.String(),
		UptimeSeconds: time.Since(s.start).Seconds(),
		Games:         games,
		Connections:   connections,
		LobbyGames:    lobby,
		Goroutines:    runtime.NumGoroutine(),
	}

	// 进程级内存/CPU 信息为尽力而为，取不到时置零。
	if proc, err := process.NewProcessWithContext(r.Context(), int32(os.Getpid())); err == nil {
		if memInfo, err := proc.MemoryInfoWithContext(r.Context()); err == nil {
			overview.MemoryRSS = memInfo.RSS
		}
		if cpuPercent, err := proc.CPUPercentWithContext(r.Context()); err == nil {
			overview.CPUPercent = cpuPercent
		}
	}

	data, err := json.Marshal(overview)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// Serve 在给定 listener 上启动状态服务，阻塞直至 ctx 取消。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Ctx(ctx).Info("status server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
