package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/Pedro-5D/planchis/internal/json"
	"github.com/Pedro-5D/planchis/internal/protocol"
	"github.com/Pedro-5D/planchis/pkg/log"
	"github.com/Pedro-5D/planchis/pkg/util/merr"
)

// fakeConn 为测试用的内存连接。
type fakeConn struct {
	id uint64

	mu       sync.Mutex
	sent     [][]byte
	closed   bool
	failSend bool
}

func newFakeConn(id uint64) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() uint64         { return c.id }
func (c *fakeConn) RemoteAddr() string { return "test:0" }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return merr.WrapErrServiceInternal("send refused")
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) lastSent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type RegistrySuite struct {
	suite.Suite

	reg     *Registry
	current time.Time
	connSeq uint64
}

func (s *RegistrySuite) SetupTest() {
	s.current = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.connSeq = 0
	s.reg = NewRegistry(DefaultConfig())
	s.reg.now = func() time.Time { return s.current }
}

func (s *RegistrySuite) TearDownTest() {
	s.reg.Close()
}

func (s *RegistrySuite) newConn() *fakeConn {
	s.connSeq++
	return newFakeConn(s.connSeq)
}

func (s *RegistrySuite) advance(d time.Duration) {
	s.current = s.current.Add(d)
}

func (s *RegistrySuite) TestCreateAssignsHostSeat() {
	conn := s.newConn()
	gameID := s.reg.Create(conn, "Ana", "Partida de Ana", 2)
	s.NotEmpty(gameID)

	g := s.reg.games[gameID]
	s.Require().NotNil(g)
	s.Equal("Ana", g.Host)
	s.Equal(1, g.ConnectedPlayers)
	s.Equal(2, g.RequiredPlayers)

	seat := g.Players["0"]
	s.Require().NotNil(seat)
	s.True(seat.IsHost)
	s.True(seat.Connected)
	s.Equal("Ana", seat.Name)

	s.True(s.reg.lobby.Contains(gameID))

	binding, ok := s.reg.dir.Lookup(conn.ID())
	s.True(ok)
	s.Equal(gameID, binding.GameID)
	s.Equal("0", binding.PlayerID)
}

func (s *RegistrySuite) TestJoinFollowsSeatTopology() {
	// 2 人局使用对角座位 {0,2}。
	gameID := s.reg.Create(s.newConn(), "Ana", "partida", 2)

	playerID, err := s.reg.JoinOrReconnect(s.newConn(), gameID, "Beto")
	s.Require().NoError(err)
	s.Equal("2", playerID)

	_, err = s.reg.JoinOrReconnect(s.newConn(), gameID, "Carla")
	s.ErrorIs(err, merr.ErrGameFull)

	// 4 人局按升序分配全部座位。
	gameID4 := s.reg.Create(s.newConn(), "Dora", "partida4", 4)
	for _, want := range []string{"1", "2", "3"} {
		got, err := s.reg.JoinOrReconnect(s.newConn(), gameID4, "J"+want)
		s.Require().NoError(err)
		s.Equal(want, got)
	}
	_, err = s.reg.JoinOrReconnect(s.newConn(), gameID4, "Extra")
	s.ErrorIs(err, merr.ErrGameFull)

	g := s.reg.games[gameID4]
	s.Equal([]int{0, 1, 2, 3}, g.GameState.ActivePlayerIndices)
}

func (s *RegistrySuite) TestJoinUnknownGame() {
	_, err := s.reg.JoinOrReconnect(s.newConn(), "no-such-game", "Ana")
	s.ErrorIs(err, merr.ErrGameNotFound)
}

func (s *RegistrySuite) TestJoinAfterStart() {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 4)
	s.Require().NoError(s.reg.Start(host, gameID))

	_, err := s.reg.JoinOrReconnect(s.newConn(), gameID, "Beto")
	s.ErrorIs(err, merr.ErrGameAlreadyStarted)
}

func (s *RegistrySuite) TestReconnectRestoresSeat() {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)

	guest := s.newConn()
	playerID, err := s.reg.JoinOrReconnect(guest, gameID, "Beto")
	s.Require().NoError(err)
	s.Equal("2", playerID)

	s.reg.Disconnect(guest)
	g := s.reg.games[gameID]
	s.False(g.Players["2"].Connected)
	s.Equal(1, g.ConnectedPlayers)

	// 同名重连回到原座位，座位数不变，回收期限被清除。
	again := s.newConn()
	playerID, err = s.reg.JoinOrReconnect(again, gameID, "Beto")
	s.Require().NoError(err)
	s.Equal("2", playerID)
	s.True(g.Players["2"].Connected)
	s.Equal(2, g.ConnectedPlayers)
	s.Len(g.Players, 2)
	s.True(g.disconnectDeadline.IsZero())
}

func (s *RegistrySuite) TestReconnectNeverClaimsConnectedSeat() {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)

	// 与在线主机同名的加入者拿到的是新座位，而不是主机的座位。
	playerID, err := s.reg.JoinOrReconnect(s.newConn(), gameID, "Ana")
	s.Require().NoError(err)
	s.Equal("2", playerID)
	s.True(s.reg.games[gameID].Players["0"].Connected)
}

func (s *RegistrySuite) TestStartOnlyByHost() {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)

	guest := s.newConn()
	_, err := s.reg.JoinOrReconnect(guest, gameID, "Beto")
	s.Require().NoError(err)

	err = s.reg.Start(guest, gameID)
	s.ErrorIs(err, merr.ErrPlayerNotHost)
	s.False(s.reg.games[gameID].GameState.Started)

	// 未绑定到该对局的连接同样不能开始。
	err = s.reg.Start(s.newConn(), gameID)
	s.ErrorIs(err, merr.ErrPlayerNotHost)

	s.Require().NoError(s.reg.Start(host, gameID))
	s.True(s.reg.games[gameID].GameState.Started)

	err = s.reg.Start(host, gameID)
	s.ErrorIs(err, merr.ErrGameAlreadyStarted)
}

func (s *RegistrySuite) TestStartFillsBoardsWithPlaceholders() {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)
	_, err := s.reg.JoinOrReconnect(s.newConn(), gameID, "Beto")
	s.Require().NoError(err)

	s.Require().NoError(s.reg.Start(host, gameID))

	g := s.reg.games[gameID]
	boards := g.GameState.Players
	s.Require().Len(boards, 4)

	s.Equal("Ana", boards[0].Name)
	s.False(boards[0].AI)
	s.Equal("Verde", boards[0].ColorName)
	s.Equal("green", boards[0].CrossZone)
	s.Equal("rgba(0, 176, 80, 0.2)", boards[0].BgColor)
	s.Equal(6, boards[0].PiecesInHouse)

	// 2 人局的 1、3 号座位为 AI 占位。
	s.True(boards[1].AI)
	s.Equal("Jugador 2", boards[1].Name)
	s.Equal("Azul", boards[1].ColorName)
	s.True(boards[3].AI)
	s.Equal("Amarillo", boards[3].ColorName)

	s.Equal("Beto", boards[2].Name)
	s.False(boards[2].AI)
	s.Equal("Rosa", boards[2].ColorName)

	s.False(s.reg.lobby.Contains(gameID))
}

func (s *RegistrySuite) startedTwoSeatGame() (string, *fakeConn, *fakeConn) {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)
	guest := s.newConn()
	_, err := s.reg.JoinOrReconnect(guest, gameID, "Beto")
	s.Require().NoError(err)
	s.Require().NoError(s.reg.Start(host, gameID))
	return gameID, host, guest
}

func (s *RegistrySuite) TestActRejectsOutOfTurn() {
	id, _, _ := s.startedTwoSeatGame()
	g := s.reg.games[id]

	// 当前回合为座位 0，座位 2 的任何动作都被拒绝且状态不变。
	actions := []protocol.Action{
		protocol.RollDice{DiceResult: json.RawMessage(`4`)},
		protocol.MovePiece{PieceID: "p1"},
		protocol.PlaceNewPiece{PieceID: "p1"},
		protocol.NextTurn{},
		protocol.GameOver{Winner: json.RawMessage(`2`)},
	}
	for _, action := range actions {
		err := s.reg.Act(id, 2, action)
		s.ErrorIs(err, merr.ErrPlayerNotTurn)
	}
	s.Equal(0, g.GameState.CurrentPlayer)
	s.Nil(g.GameState.DiceResult)
	s.False(g.GameState.GameOver)
	s.Empty(g.GameState.Pieces)
}

func (s *RegistrySuite) TestActNextTurnAdvancesCursor() {
	id, _, _ := s.startedTwoSeatGame()
	g := s.reg.games[id]

	s.Require().NoError(s.reg.Act(id, 0, protocol.RollDice{DiceResult: json.RawMessage(`6`)}))
	s.JSONEq(`6`, string(g.GameState.DiceResult))

	s.Require().NoError(s.reg.Act(id, 0, protocol.NextTurn{}))
	s.Equal(1, g.GameState.CurrentPlayer)
	s.Nil(g.GameState.DiceResult)
	s.JSONEq(`[]`, string(g.GameState.PossibleMoves))

	// 现在轮到座位 2，座位 0 被拒绝。
	err := s.reg.Act(id, 0, protocol.NextTurn{})
	s.ErrorIs(err, merr.ErrPlayerNotTurn)
	s.Equal(1, g.GameState.CurrentPlayer)

	// 指针按活跃座位数取模回到起点。
	s.Require().NoError(s.reg.Act(id, 2, protocol.NextTurn{}))
	s.Equal(0, g.GameState.CurrentPlayer)
}

func (s *RegistrySuite) TestActPlaceAndMovePiece() {
	id, _, _ := s.startedTwoSeatGame()
	g := s.reg.games[id]

	err := s.reg.Act(id, 0, protocol.PlaceNewPiece{PieceID: "p0-1", Row: 3, Col: 0})
	s.Require().NoError(err)
	s.Require().Len(g.GameState.Pieces, 1)
	s.Equal(0, g.GameState.Pieces[0].Player)
	s.Equal(5, g.GameState.Players[0].PiecesInHouse)

	inCross := true
	err = s.reg.Act(id, 0, protocol.MovePiece{
		PieceID:   "p0-1",
		TargetRow: 4,
		TargetCol: 7,
		InCross:   &inCross,
	})
	s.Require().NoError(err)
	s.Equal(4, g.GameState.Pieces[0].Row)
	s.Equal(7, g.GameState.Pieces[0].Col)
	s.True(g.GameState.Pieces[0].InCross)
}

func (s *RegistrySuite) TestActAppliesCaptures() {
	id, _, _ := s.startedTwoSeatGame()
	g := s.reg.games[id]

	// 预置一枚座位 2 的棋子，随后被座位 0 吃掉。
	g.GameState.Pieces = append(g.GameState.Pieces, &Piece{ID: "p2-1", Player: 2, Row: 4, Col: 7})

	err := s.reg.Act(id, 0, protocol.PlaceNewPiece{
		PieceID:        "p0-1",
		Row:            4,
		Col:            7,
		CapturedPieces: []string{"p2-1"},
		UpdatedPlayers: map[string]protocol.PlayerCounters{
			"2": {PiecesInHouse: 6, PiecesInCross: 0},
		},
	})
	s.Require().NoError(err)

	s.Require().Len(g.GameState.Pieces, 1)
	s.Equal("p0-1", g.GameState.Pieces[0].ID)
	s.Equal(6, g.GameState.Players[2].PiecesInHouse)
}

func (s *RegistrySuite) TestActIgnoresCountersWithoutCaptures() {
	id, _, _ := s.startedTwoSeatGame()
	g := s.reg.games[id]

	s.Require().NoError(s.reg.Act(id, 0, protocol.PlaceNewPiece{PieceID: "p0-1", Row: 3, Col: 0}))
	s.Require().Equal(5, g.GameState.Players[0].PiecesInHouse)

	// 没有吃子的移动即使带了 updatedPlayers 也不改动任何计数。
	err := s.reg.Act(id, 0, protocol.MovePiece{
		PieceID:   "p0-1",
		TargetRow: 4,
		TargetCol: 1,
		UpdatedPlayers: map[string]protocol.PlayerCounters{
			"0": {PiecesInHouse: 0, PiecesInCross: 6},
			"2": {PiecesInHouse: 0, PiecesInCross: 6},
		},
	})
	s.Require().NoError(err)
	s.Equal(5, g.GameState.Players[0].PiecesInHouse)
	s.Equal(0, g.GameState.Players[0].PiecesInCross)
	s.Equal(6, g.GameState.Players[2].PiecesInHouse)
	s.Equal(4, g.GameState.Pieces[0].Row)
}

func (s *RegistrySuite) TestLoggerBinding() {
	// 未绑定时回退到全局 Logger。
	s.NotNil(s.reg.Logger())

	custom := log.With(zap.String(log.FieldNameComponent, "registry"))
	s.reg.SetLogger(custom)
	s.Same(custom, s.reg.Logger())
}

func (s *RegistrySuite) TestActGameOver() {
	id, _, _ := s.startedTwoSeatGame()
	g := s.reg.games[id]

	s.Require().NoError(s.reg.Act(id, 0, protocol.GameOver{Winner: json.RawMessage(`0`)}))
	s.True(g.GameState.GameOver)
	s.JSONEq(`0`, string(g.GameState.Winner))
}

func (s *RegistrySuite) TestActUnknownGame() {
	err := s.reg.Act("no-such-game", 0, protocol.NextTurn{})
	s.ErrorIs(err, merr.ErrGameNotFound)
}

func (s *RegistrySuite) TestDisconnectStartedGameSetsDeadline() {
	id, _, guest := s.startedTwoSeatGame()
	g := s.reg.games[id]

	s.reg.Disconnect(guest)
	s.Equal(s.current.Add(s.reg.cfg.GracePeriod), g.disconnectDeadline)
	s.Equal(1, g.ConnectedPlayers)

	// 对局仍然存在，等待重连。
	s.Contains(s.reg.games, id)
}

func (s *RegistrySuite) TestDisconnectLobbyGameStampsEmptySince() {
	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)

	s.reg.Disconnect(host)
	g := s.reg.games[gameID]
	s.Equal(0, g.ConnectedPlayers)
	s.Equal(s.current, g.emptySince)
	s.False(g.disconnectDeadline.IsZero())
}

func (s *RegistrySuite) TestDisconnectUnboundConnIsNoop() {
	s.reg.Disconnect(s.newConn())
}

func (s *RegistrySuite) TestCreateJoinBroadcastsToBothSeats() {
	host := s.newConn()
	gameID := s.reg.Create(host, "A", "partida", 2)

	guest := s.newConn()
	_, err := s.reg.JoinOrReconnect(guest, gameID, "B")
	s.Require().NoError(err)

	for _, conn := range []*fakeConn{host, guest} {
		s.Require().NotZero(conn.sentCount())

		var update struct {
			Type string `json:"type"`
			Game struct {
				Players          map[string]*SeatInfo `json:"players"`
				ConnectedPlayers int                  `json:"connectedPlayers"`
			} `json:"game"`
		}
		s.Require().NoError(json.Unmarshal(conn.lastSent(), &update))
		s.Equal("game_update", update.Type)
		s.Equal(2, update.Game.ConnectedPlayers)
		s.Len(update.Game.Players, 2)
		s.Contains(update.Game.Players, "0")
		s.Contains(update.Game.Players, "2")
	}
}

func (s *RegistrySuite) TestAvailableGames() {
	s.Empty(s.reg.AvailableGames())

	host := s.newConn()
	gameID := s.reg.Create(host, "Ana", "partida", 2)

	games := s.reg.AvailableGames()
	s.Require().Len(games, 1)
	s.Equal(gameID, games[0].GameID)
	s.Equal(1, games[0].ConnectedPlayers)
	s.Equal(2, games[0].RequiredPlayers)

	// 满员后从大厅移除。
	_, err := s.reg.JoinOrReconnect(s.newConn(), gameID, "Beto")
	s.Require().NoError(err)
	s.Empty(s.reg.AvailableGames())
}

func TestRegistry(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}
