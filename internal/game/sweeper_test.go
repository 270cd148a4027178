package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/Pedro-5D/planchis/pkg/log"
	"github.com/Pedro-5D/planchis/pkg/util/merr"
)

type SweeperSuite struct {
	suite.Suite

	reg     *Registry
	sweeper *Sweeper
	current time.Time
	connSeq uint64
}

func (s *SweeperSuite) SetupTest() {
	s.current = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.connSeq = 0

	cfg := DefaultConfig()
	cfg.MaxGames = 3
	s.reg = NewRegistry(cfg)
	s.reg.now = func() time.Time { return s.current }
	s.sweeper = NewSweeper(s.reg)
}

func (s *SweeperSuite) TearDownTest() {
	s.reg.Close()
}

func (s *SweeperSuite) newConn() *fakeConn {
	s.connSeq++
	return newFakeConn(s.connSeq)
}

func (s *SweeperSuite) advance(d time.Duration) {
	s.current = s.current.Add(d)
}

// startedGame 建好一局已开始的 2 人局并返回双方连接。
func (s *SweeperSuite) startedGame() (string, *fakeConn, *fakeConn) {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)
	guest := s.newConn()
	_, err := s.reg.JoinOrReconnect(guest, gameID, "Beto")
	s.Require().NoError(err)
	s.Require().NoError(s.reg.Start(host, gameID))
	return gameID, host, guest
}

func (s *SweeperSuite) TestDeadlineReap() {
	gameID, host, guest := s.startedGame()

	s.reg.Disconnect(host)
	s.reg.Disconnect(guest)

	// 宽限期未到，不回收。
	s.advance(4 * time.Minute)
	s.sweeper.SweepOnce()
	s.Contains(s.reg.games, gameID)

	// 宽限期已过，回收；同一 ID 再加入返回 NotFound。
	s.advance(2 * time.Minute)
	s.sweeper.SweepOnce()
	s.NotContains(s.reg.games, gameID)
	s.False(s.reg.lobby.Contains(gameID))

	_, err := s.reg.JoinOrReconnect(s.newConn(), gameID, "Beto")
	s.ErrorIs(err, merr.ErrGameNotFound)
}

func (s *SweeperSuite) TestReconnectCancelsDeadline() {
	gameID, host, guest := s.startedGame()

	s.reg.Disconnect(guest)
	_ = host

	s.advance(6 * time.Minute)

	// 重连发生在清理之前，回收期限被清除，对局保留。
	_, err := s.reg.JoinOrReconnect(s.newConn(), gameID, "Beto")
	s.Require().NoError(err)

	s.sweeper.SweepOnce()
	s.Contains(s.reg.games, gameID)
}

func (s *SweeperSuite) TestAgeReap() {
	gameID, _, _ := s.startedGame()
	g := s.reg.games[gameID]

	// 保持活跃也挡不住存活时间上限。
	for i := 0; i < 25; i++ {
		s.advance(time.Hour)
		g.lastActivity = s.current
		if s.current.Sub(g.createdAt) <= s.reg.cfg.MaxAge {
			s.sweeper.SweepOnce()
			s.Contains(s.reg.games, gameID)
		}
	}

	s.sweeper.SweepOnce()
	s.NotContains(s.reg.games, gameID)
}

func (s *SweeperSuite) TestInactivityReap() {
	gameID, _, _ := s.startedGame()

	s.advance(2 * time.Hour)
	s.sweeper.SweepOnce()
	s.Contains(s.reg.games, gameID)

	s.advance(90 * time.Minute)
	s.sweeper.SweepOnce()
	s.NotContains(s.reg.games, gameID)
}

func (s *SweeperSuite) TestLobbyEmptyReap() {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)

	s.reg.Disconnect(host)
	g := s.reg.games[gameID]
	s.Require().Equal(s.current, g.emptySince)

	// 单独验证空置回收路径：清掉断线期限，只留空置时间戳。
	g.disconnectDeadline = time.Time{}

	// 空置上限未到，不回收。
	s.advance(4 * time.Minute)
	s.sweeper.SweepOnce()
	s.Contains(s.reg.games, gameID)

	s.advance(2 * time.Minute)
	s.sweeper.SweepOnce()
	s.NotContains(s.reg.games, gameID)
	s.False(s.reg.lobby.Contains(gameID))
}

func (s *SweeperSuite) TestLobbyEmptySinceClearedOnRejoin() {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)

	s.reg.Disconnect(host)
	g := s.reg.games[gameID]
	g.disconnectDeadline = time.Time{}
	s.Require().False(g.emptySince.IsZero())

	_, err := s.reg.JoinOrReconnect(s.newConn(), gameID, "Ana")
	s.Require().NoError(err)
	s.True(g.emptySince.IsZero())

	s.advance(10 * time.Minute)
	s.sweeper.SweepOnce()
	s.Contains(s.reg.games, gameID)
}

func (s *SweeperSuite) TestOrphanBindingForceClosed() {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)

	// 模拟对局状态先于绑定消失的情况。
	s.reg.mu.Lock()
	delete(s.reg.games, gameID)
	s.reg.lobby.Remove(gameID)
	s.reg.mu.Unlock()

	s.sweeper.SweepOnce()

	_, ok := s.reg.dir.Lookup(host.ID())
	s.False(ok)
	s.True(host.isClosed())
}

func (s *SweeperSuite) TestLoggerBinding() {
	s.NotNil(s.sweeper.Logger())

	custom := log.With(zap.String(log.FieldNameComponent, "sweeper"))
	s.sweeper.SetLogger(custom)
	s.Same(custom, s.sweeper.Logger())
}

func (s *SweeperSuite) TestCapacityEviction() {
	// 上限为 3，创建 5 局，活跃时间依次递增。
	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		s.advance(time.Minute)
		id := s.reg.Create(s.newConn(), fmt.Sprintf("Host%d", i), "partida", 2)
		ids = append(ids, id)
	}

	s.sweeper.SweepOnce()

	s.Len(s.reg.games, 3)
	// 最久未活跃的两局被逐出。
	s.NotContains(s.reg.games, ids[0])
	s.NotContains(s.reg.games, ids[1])
	for _, id := range ids[2:] {
		s.Contains(s.reg.games, id)
	}
}

func TestSweeper(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}
