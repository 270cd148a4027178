package game

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/Pedro-5D/planchis/pkg/log"
	"github.com/Pedro-5D/planchis/pkg/metrics"
)

// Sweeper 周期性回收过期、废弃或超量的对局，以及孤儿连接绑定。
type Sweeper struct {
	log.Binder

	reg      *Registry
	interval time.Duration

	// now 可在测试中注入假时钟。
	now func() time.Time
}

// NewSweeper 创建清理任务，周期取自 Registry 配置。
func NewSweeper(reg *Registry) *Sweeper {
	return &Sweeper{
		reg:      reg,
		interval: reg.cfg.SweepInterval,
		now:      reg.now,
	}
}

// Run 周期执行清理，阻塞直至 ctx 取消。
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Logger().Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.Logger().Info("sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// reapCandidate 为一次扫描中判定待回收的对局。
type reapCandidate struct {
	gameID string
	reason string
}

// SweepOnce 执行一轮完整清理：过期对局、孤儿绑定、容量逐出。
//
// 判定与删除分两步：先在锁内收集候选，再逐个加锁复核后删除，
// 避免长时间持锁阻塞请求处理，同时容忍判定与删除之间的并发变更
// （例如玩家恰好在此期间重连）。
func (s *Sweeper) SweepOnce() {
	start := time.Now()

	for _, c := range s.collectExpired() {
		s.reapVerified(c)
	}
	s.sweepOrphans()
	s.enforceCapacity()

	metrics.SweepDuration.Observe(float64(time.Since(start).Milliseconds()))
}

// collectExpired 收集所有满足回收条件的对局。
// 条件按优先级评估，第一个命中的即为回收原因：
//  1. 断线宽限期已过；
//  2. 对局创建已超过最长存活时间；
//  3. 超过最长无动作时间；
//  4. 大厅中无人连接的对局空置超时（首次观察到空置时补记时间戳）。
func (s *Sweeper) collectExpired() []reapCandidate {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	now := s.now()
	var candidates []reapCandidate

	for gameID, g := range s.reg.games {
		switch {
		case !g.disconnectDeadline.IsZero() && now.After(g.disconnectDeadline):
			candidates = append(candidates, reapCandidate{gameID, metrics.ReapReasonDeadline})

		case now.Sub(g.createdAt) > s.reg.cfg.MaxAge:
			candidates = append(candidates, reapCandidate{gameID, metrics.ReapReasonAge})

		case now.Sub(g.lastActivity) > s.reg.cfg.MaxInactivity:
			candidates = append(candidates, reapCandidate{gameID, metrics.ReapReasonInactivity})

		case s.reg.lobby.Contains(gameID) && g.ConnectedPlayers <= 0:
			if g.emptySince.IsZero() {
				// 断线路径之外也可能观察到空置（例如绑定被强制关闭），
				// 首次观察到时补记时间戳。
				g.emptySince = now
			} else if now.Sub(g.emptySince) > s.reg.cfg.LobbyEmptyTTL {
				candidates = append(candidates, reapCandidate{gameID, metrics.ReapReasonLobbyEmpty})
			}

		default:
			// 有人连接的大厅对局清除空置时间戳。
			if g.ConnectedPlayers > 0 {
				g.emptySince = time.Time{}
			}
		}
	}
	return candidates
}

// reapVerified 复核后删除单个对局。
// 判定与删除之间状态可能已经变化（重连、恢复活跃），复核不通过则放弃。
func (s *Sweeper) reapVerified(c reapCandidate) {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	g, ok := s.reg.games[c.gameID]
	if !ok {
		return
	}

	now := s.now()
	valid := false
	switch c.reason {
	case metrics.ReapReasonDeadline:
		valid = !g.disconnectDeadline.IsZero() && now.After(g.disconnectDeadline)
	case metrics.ReapReasonAge:
		valid = now.Sub(g.createdAt) > s.reg.cfg.MaxAge
	case metrics.ReapReasonInactivity:
		valid = now.Sub(g.lastActivity) > s.reg.cfg.MaxInactivity
	case metrics.ReapReasonLobbyEmpty:
		valid = s.reg.lobby.Contains(c.gameID) && g.ConnectedPlayers <= 0 &&
			!g.emptySince.IsZero() && now.Sub(g.emptySince) > s.reg.cfg.LobbyEmptyTTL
	}
	if !valid {
		return
	}

	s.reg.reapLocked(c.gameID, c.reason)
}

// sweepOrphans 强制关闭指向已删除对局的连接绑定。
func (s *Sweeper) sweepOrphans() {
	var orphans []Conn

	s.reg.mu.Lock()
	s.reg.dir.Range(func(conn Conn, b Binding) bool {
		if _, ok := s.reg.games[b.GameID]; !ok {
			orphans = append(orphans, conn)
		}
		return true
	})
	for _, conn := range orphans {
		s.reg.dir.Unbind(conn.ID())
	}
	s.reg.updateGaugesLocked()
	s.reg.mu.Unlock()

	for _, conn := range orphans {
		_ = conn.Close()
		metrics.GameReapTotal.WithLabelValues(metrics.ReapReasonOrphan).Inc()
		s.Logger().Warn("orphan connection closed", zap.Uint64("connID", conn.ID()))
	}
}

// enforceCapacity 在对局总数超过上限时按最后活跃时间升序逐出。
func (s *Sweeper) enforceCapacity() {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()

	excess := len(s.reg.games) - s.reg.cfg.MaxGames
	if excess <= 0 {
		return
	}

	type aged struct {
		gameID       string
		lastActivity time.Time
	}
	all := make([]aged, 0, len(s.reg.games))
	for gameID, g := range s.reg.games {
		all = append(all, aged{gameID: gameID, lastActivity: g.lastActivity})
	}
	slices.SortFunc(all, func(a, b aged) int {
		return a.lastActivity.Compare(b.lastActivity)
	})

	for i := 0; i < excess; i++ {
		s.reg.reapLocked(all[i].gameID, metrics.ReapReasonCapacity)
	}
}
