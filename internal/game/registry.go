package game

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/Pedro-5D/planchis/internal/json"
	"github.com/Pedro-5D/planchis/internal/protocol"
	"github.com/Pedro-5D/planchis/pkg/log"
	"github.com/Pedro-5D/planchis/pkg/metrics"
	"github.com/Pedro-5D/planchis/pkg/util/merr"
	"github.com/Pedro-5D/planchis/pkg/util/typeutil"
)

// Config 为会话生命周期管理的全部时间与容量参数。
type Config struct {
	// GracePeriod 为断线后保留座位等待重连的宽限期。
	GracePeriod time.Duration
	// MaxAge 为一局对局从创建起的最长存活时间。
	MaxAge time.Duration
	// MaxInactivity 为无任何动作后的最长存活时间。
	MaxInactivity time.Duration
	// LobbyEmptyTTL 为大厅中无人连接的对局的回收等待时间。
	LobbyEmptyTTL time.Duration
	// MaxGames 为全局对局数量上限，超出后按活跃时间逐出。
	MaxGames int
	// SweepInterval 为清理任务的执行周期。
	SweepInterval time.Duration
	// BroadcastPoolSize 为广播发送协程数上限。
	BroadcastPoolSize int
}

// DefaultConfig 返回默认的生命周期参数。
func DefaultConfig() Config {
	return Config{
		GracePeriod:       5 * time.Minute,
		MaxAge:            24 * time.Hour,
		MaxInactivity:     3 * time.Hour,
		LobbyEmptyTTL:     5 * time.Minute,
		MaxGames:          100,
		SweepInterval:     30 * time.Second,
		BroadcastPoolSize: 64,
	}
}

// Registry 持有全部对局并提供生命周期操作。
//
// 并发模型：所有对局状态的读写都在 mu 内完成（含快照序列化），
// 广播的网络发送在锁外并行执行。清理任务共享同一把锁。
type Registry struct {
	log.Binder

	mu    sync.Mutex
	games map[string]*Game

	lobby *Lobby
	dir   *Directory
	bc    *Broadcaster

	cfg Config

	// now 可在测试中注入假时钟。
	now func() time.Time
}

// NewRegistry 创建一个空的 Registry。cfg 的零值字段会被替换为默认值。
func NewRegistry(cfg Config) *Registry {
	def := DefaultConfig()
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = def.GracePeriod
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.MaxInactivity <= 0 {
		cfg.MaxInactivity = def.MaxInactivity
	}
	if cfg.LobbyEmptyTTL <= 0 {
		cfg.LobbyEmptyTTL = def.LobbyEmptyTTL
	}
	if cfg.MaxGames <= 0 {
		cfg.MaxGames = def.MaxGames
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.BroadcastPoolSize <= 0 {
		cfg.BroadcastPoolSize = def.BroadcastPoolSize
	}

	return &Registry{
		games: make(map[string]*Game),
		lobby: NewLobby(),
		dir:   NewDirectory(),
		bc:    NewBroadcaster(cfg.BroadcastPoolSize),
		cfg:   cfg,
		now:   time.Now,
	}
}

// Close 释放 Registry 持有的资源。
func (r *Registry) Close() {
	r.bc.Close()
}

// Create 创建一局新对局，conn 成为 0 号座位的主机。总是成功。
func (r *Registry) Create(conn Conn, hostName, gameName string, mode int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	gameID := uuid.NewString()
	now := r.now()

	g := &Game{
		GameID:   gameID,
		GameName: gameName,
		GameMode: mode,
		Host:     hostName,
		Players: map[string]*SeatInfo{
			"0": {Name: hostName, Connected: true, IsHost: true},
		},
		GameState: &GameState{
			CurrentPlayer:       0,
			Pieces:              make([]*Piece, 0),
			ActivePlayerIndices: []int{0},
			HumanPlayers:        []int{0},
			Players:             make([]*PlayerBoard, 0),
		},
		ConnectedPlayers: 1,
		RequiredPlayers:  mode,
		createdAt:        now,
		lastActivity:     now,
		conns: map[string]Conn{
			"0": conn,
		},
	}
	r.games[gameID] = g
	r.dir.Bind(conn, gameID, "0", hostName)

	if mode > 1 {
		r.lobby.Upsert(&protocol.LobbyEntry{
			GameID:           gameID,
			GameName:         gameName,
			GameMode:         mode,
			Host:             hostName,
			ConnectedPlayers: 1,
			RequiredPlayers:  mode,
		})
	}

	r.updateGaugesLocked()

	r.Logger().Info("game created",
		zap.String("gameId", gameID),
		zap.String("host", hostName),
		zap.Int("mode", mode))
	return gameID
}

// JoinOrReconnect 让玩家加入对局或重连回原座位，返回分配到的座位号。
//
// 同名重连优先于新座位分配：如果存在一个已断线且名字匹配的座位，
// 则重新附着到该座位，不改变座位拓扑，并清除断线回收期限。
func (r *Registry) JoinOrReconnect(conn Conn, gameID, name string) (string, error) {
	r.mu.Lock()
	playerID, msg, err := r.joinLocked(conn, gameID, name)
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	_ = r.bc.Broadcast(msg)
	return playerID, nil
}

func (r *Registry) joinLocked(conn Conn, gameID, name string) (string, *outbound, error) {
	g, ok := r.games[gameID]
	if !ok {
		return "", nil, merr.WrapErrGameNotFound(gameID, "failed to join game")
	}

	// 同名重连：按拓扑顺序找第一个断线且名字匹配的座位。
	for _, idx := range seatTopology(g.GameMode) {
		playerID := strconv.Itoa(idx)
		seat, exists := g.Players[playerID]
		if !exists || seat.Connected || seat.Name != name {
			continue
		}

		seat.Connected = true
		g.conns[playerID] = conn
		g.ConnectedPlayers++
		g.disconnectDeadline = time.Time{}
		g.emptySince = time.Time{}
		g.lastActivity = r.now()
		r.dir.Bind(conn, gameID, playerID, name)
		r.lobby.UpdateConnected(gameID, g.ConnectedPlayers)
		r.updateGaugesLocked()

		r.Logger().Info("player reconnected",
			zap.String("gameId", gameID),
			zap.String("playerId", playerID),
			zap.String("name", name))
		return playerID, r.snapshotLocked(g), nil
	}

	if len(g.Players) >= g.GameMode {
		return "", nil, merr.WrapErrGameFull(gameID, g.GameMode, "failed to join game")
	}
	if g.GameState.Started {
		return "", nil, merr.WrapErrGameAlreadyStarted(gameID, "failed to join game")
	}

	// 按拓扑升序分配下一个空闲座位。
	taken := typeutil.NewSet[string]()
	for seatID := range g.Players {
		taken.Insert(seatID)
	}
	playerID := ""
	for _, idx := range seatTopology(g.GameMode) {
		candidate := strconv.Itoa(idx)
		if !taken.Contain(candidate) {
			playerID = candidate
			break
		}
	}
	if playerID == "" {
		return "", nil, merr.WrapErrGameFull(gameID, g.GameMode, "no free seat in topology")
	}

	g.Players[playerID] = &SeatInfo{Name: name, Connected: true, IsHost: false}
	g.conns[playerID] = conn
	g.ConnectedPlayers++
	g.emptySince = time.Time{}
	g.lastActivity = r.now()
	r.dir.Bind(conn, gameID, playerID, name)

	idx, _ := strconv.Atoi(playerID)
	gs := g.GameState
	if !lo.Contains(gs.HumanPlayers, idx) {
		gs.HumanPlayers = append(gs.HumanPlayers, idx)
	}
	if !lo.Contains(gs.ActivePlayerIndices, idx) {
		gs.ActivePlayerIndices = append(gs.ActivePlayerIndices, idx)
		slices.Sort(gs.ActivePlayerIndices)
	}

	if g.ConnectedPlayers >= g.RequiredPlayers {
		r.lobby.Remove(gameID)
	} else {
		r.lobby.UpdateConnected(gameID, g.ConnectedPlayers)
	}
	r.updateGaugesLocked()

	r.Logger().Info("player joined",
		zap.String("gameId", gameID),
		zap.String("playerId", playerID),
		zap.String("name", name))
	return playerID, r.snapshotLocked(g), nil
}

// Start 开始对局。只有主机座位可以开始，且只能开始一次。
// 未被真人占用的座位以固定的 AI 占位配置填充。
func (r *Registry) Start(conn Conn, gameID string) error {
	r.mu.Lock()
	msg, err := r.startLocked(conn, gameID)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	_ = r.bc.Broadcast(msg)
	return nil
}

func (r *Registry) startLocked(conn Conn, gameID string) (*outbound, error) {
	g, ok := r.games[gameID]
	if !ok {
		return nil, merr.WrapErrGameNotFound(gameID, "failed to start game")
	}

	binding, ok := r.dir.Lookup(conn.ID())
	if !ok || binding.GameID != gameID {
		return nil, merr.WrapErrPlayerNotHost(conn.ID(), "requester not bound to game")
	}
	seat, ok := g.Players[binding.PlayerID]
	if !ok || !seat.IsHost {
		return nil, merr.WrapErrPlayerNotHost(binding.PlayerID, "failed to start game")
	}
	if g.GameState.Started {
		return nil, merr.WrapErrGameAlreadyStarted(gameID, "failed to start game")
	}

	boards := make([]*PlayerBoard, 0, len(seatDefaults))
	for i := range seatDefaults {
		humanName := ""
		human := false
		if s, exists := g.Players[strconv.Itoa(i)]; exists {
			humanName = s.Name
			human = true
		}
		boards = append(boards, newPlayerBoard(i, humanName, !human))
	}

	g.GameState.Players = boards
	g.GameState.Started = true
	g.lastActivity = r.now()
	r.lobby.Remove(gameID)
	r.updateGaugesLocked()

	r.Logger().Info("game started",
		zap.String("gameId", gameID),
		zap.String("host", binding.Name))
	return r.snapshotLocked(g), nil
}

// Act 应用一个玩家动作。唯一的内容校验是回合顺序：
// 动作座位必须等于当前回合座位，其余负载内容一律信任客户端。
func (r *Registry) Act(gameID string, seatIdx int, action protocol.Action) error {
	r.mu.Lock()
	msg, err := r.actLocked(gameID, seatIdx, action)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	_ = r.bc.Broadcast(msg)
	return nil
}

func (r *Registry) actLocked(gameID string, seatIdx int, action protocol.Action) (*outbound, error) {
	g, ok := r.games[gameID]
	if !ok {
		return nil, merr.WrapErrGameNotFound(gameID, "failed to apply action")
	}

	gs := g.GameState
	current := gs.ActivePlayerIndices[gs.CurrentPlayer]
	if seatIdx != current {
		return nil, merr.WrapErrPlayerNotTurn(seatIdx, current, "failed to apply action")
	}

	switch a := action.(type) {
	case protocol.RollDice:
		gs.DiceResult = a.DiceResult
		if len(a.PossibleMoves) == 0 {
			gs.PossibleMoves = json.RawMessage("[]")
		} else {
			gs.PossibleMoves = a.PossibleMoves
		}

	case protocol.MovePiece:
		for _, piece := range gs.Pieces {
			if piece.ID != a.PieceID {
				continue
			}
			piece.Row = a.TargetRow
			piece.Col = a.TargetCol
			if a.InCross != nil {
				piece.InCross = *a.InCross
			}
			break
		}
		applyCaptures(gs, a.CapturedPieces, a.UpdatedPlayers)

	case protocol.PlaceNewPiece:
		gs.Pieces = append(gs.Pieces, &Piece{
			ID:      a.PieceID,
			Player:  current,
			Row:     a.Row,
			Col:     a.Col,
			InCross: a.InCross,
		})
		if current >= 0 && current < len(gs.Players) {
			gs.Players[current].PiecesInHouse--
			if a.InCross {
				gs.Players[current].PiecesInCross++
			}
		}
		applyCaptures(gs, a.CapturedPieces, a.UpdatedPlayers)

	case protocol.NextTurn:
		// 回合指针的唯一变更点。
		gs.CurrentPlayer = (gs.CurrentPlayer + 1) % len(gs.ActivePlayerIndices)
		gs.DiceResult = nil
		gs.PossibleMoves = json.RawMessage("[]")

	case protocol.GameOver:
		gs.GameOver = true
		gs.Winner = a.Winner

	default:
		return nil, merr.WrapErrActionUnknownKind(string(action.Kind()))
	}

	g.lastActivity = r.now()
	return r.snapshotLocked(g), nil
}

// applyCaptures 删除被吃掉的棋子并按客户端上报值修正各座位计数。
// 计数更新只随吃子一起生效：没有吃子时 updatedPlayers 被整体忽略。
func applyCaptures(gs *GameState, captured []string, updated map[string]protocol.PlayerCounters) {
	if len(captured) == 0 {
		return
	}
	gs.Pieces = lo.Filter(gs.Pieces, func(p *Piece, _ int) bool {
		return !lo.Contains(captured, p.ID)
	})
	for idxStr, counters := range updated {
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 || idx >= len(gs.Players) {
			continue
		}
		gs.Players[idx].PiecesInHouse = counters.PiecesInHouse
		gs.Players[idx].PiecesInCross = counters.PiecesInCross
	}
}

// Disconnect 处理连接关闭：解除绑定、标记座位断线，
// 并为后续重连设置宽限期。未绑定的连接为空操作。
func (r *Registry) Disconnect(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.dir.Unbind(conn.ID())
	if !ok {
		return
	}

	g, ok := r.games[binding.GameID]
	if !ok {
		return
	}

	if seat, exists := g.Players[binding.PlayerID]; exists && seat.Connected {
		seat.Connected = false
		g.ConnectedPlayers--
	}
	delete(g.conns, binding.PlayerID)

	now := r.now()

	// 已开始的对局，或断到一个人都不剩的对局，
	// 进入重连宽限期而不是立即删除。
	if g.GameState.Started || g.ConnectedPlayers <= 0 {
		g.disconnectDeadline = now.Add(r.cfg.GracePeriod)
	}

	// 未开始且无人连接的大厅对局单独记录空置时间，加速回收。
	if !g.GameState.Started && g.ConnectedPlayers <= 0 && r.lobby.Contains(binding.GameID) {
		g.emptySince = now
	}

	r.lobby.UpdateConnected(binding.GameID, g.ConnectedPlayers)
	r.updateGaugesLocked()

	r.Logger().Info("player disconnected",
		zap.String("gameId", binding.GameID),
		zap.String("playerId", binding.PlayerID),
		zap.String("name", binding.Name))
}

// AvailableGames 返回当前可加入的对局列表。
func (r *Registry) AvailableGames() []protocol.LobbyEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lobby.List()
}

// Stats 返回当前对局/连接/大厅数量，供状态接口使用。
func (r *Registry) Stats() (games, connections, lobby int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.games), r.dir.Len(), r.lobby.Len()
}

// snapshotLocked 在锁内将对局序列化为一条 game_update 消息。
// 返回的 outbound 不再引用可变状态，发送可以安全地在锁外并行。
func (r *Registry) snapshotLocked(g *Game) *outbound {
	update := struct {
		Type protocol.MessageType `json:"type"`
		Game *Game                `json:"game"`
	}{
		Type: protocol.MessageGameUpdate,
		Game: g,
	}

	data, err := json.Marshal(update)
	if err != nil {
		r.Logger().Error("failed to marshal game snapshot",
			zap.String("gameId", g.GameID),
			zap.Error(err))
		return nil
	}

	conns := make([]Conn, 0, len(g.conns))
	for _, conn := range g.conns {
		conns = append(conns, conn)
	}

	return &outbound{
		gameID: g.GameID,
		data:   data,
		conns:  conns,
	}
}

// reapLocked 删除对局及其全部关联状态：连接绑定、大厅记录、附着连接。
// 对不存在的对局幂等。
func (r *Registry) reapLocked(gameID, reason string) {
	g, ok := r.games[gameID]
	if !ok {
		return
	}

	for _, conn := range g.conns {
		r.dir.Unbind(conn.ID())
		_ = conn.Close()
	}
	delete(r.games, gameID)
	r.lobby.Remove(gameID)
	r.updateGaugesLocked()

	metrics.GameReapTotal.WithLabelValues(reason).Inc()
	r.Logger().Info("game reaped",
		zap.String("gameId", gameID),
		zap.String("reason", reason))
}

func (r *Registry) updateGaugesLocked() {
	metrics.NumGames.Set(float64(len(r.games)))
	metrics.NumConnections.Set(float64(r.dir.Len()))
}
