package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Pedro-5D/planchis/application"
	"github.com/Pedro-5D/planchis/internal/game"
	"github.com/Pedro-5D/planchis/internal/network"
	"github.com/Pedro-5D/planchis/internal/status"
	"github.com/Pedro-5D/planchis/pkg/log"
	"github.com/Pedro-5D/planchis/pkg/metrics"
	"github.com/Pedro-5D/planchis/pkg/version"
)

func main() {
	app := application.New()
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	srvCfg := app.Server()
	reg := game.NewRegistry(gameConfig(app.Game()))
	defer reg.Close()

	dispatcher := game.NewDispatcher(reg)
	sweeper := game.NewSweeper(reg)
	acceptor := network.NewAcceptor(network.Config{Path: srvCfg.Path}, dispatcher)
	statusSrv := status.NewServer(reg)

	// 配置文件 logging: 段中的命名 Logger 绑定到各常驻组件。
	reg.SetLogger(app.Logger("game"))
	sweeper.SetLogger(app.Logger("sweeper"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsAddr := fmt.Sprintf("%s:%d", srvCfg.Host, srvCfg.Port)
	wsLn, err := net.Listen("tcp", wsAddr)
	if err != nil {
		log.Fatal("failed to listen websocket address", zap.String("addr", wsAddr), zap.Error(err))
	}

	statusAddr := fmt.Sprintf("%s:%d", srvCfg.Host, srvCfg.StatusPort)
	statusLn, err := net.Listen("tcp", statusAddr)
	if err != nil {
		log.Fatal("failed to listen status address", zap.String("addr", statusAddr), zap.Error(err))
	}

	log.Info("planchis relay server starting",
		zap.String("version", version.String()),
		zap.String("wsAddr", wsAddr),
		zap.String("wsPath", srvCfg.Path),
		zap.String("statusAddr", statusAddr))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return acceptor.Serve(ctx, wsLn)
	})
	g.Go(func() error {
		return statusSrv.Serve(log.WithModule(ctx, "status"), statusLn)
	})
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server exited")
}

// gameConfig 将配置文件中的秒/小时粒度参数换算为内部配置。
// 零值字段由 Registry 回填默认值。
func gameConfig(cfg application.GameConfig) game.Config {
	return game.Config{
		GracePeriod:   time.Duration(cfg.GracePeriodSeconds) * time.Second,
		MaxAge:        time.Duration(cfg.MaxAgeHours) * time.Hour,
		MaxInactivity: time.Duration(cfg.MaxInactivityHours) * time.Hour,
		LobbyEmptyTTL: time.Duration(cfg.LobbyEmptyTTLSeconds) * time.Second,
		MaxGames:      cfg.MaxGames,
		SweepInterval: time.Duration(cfg.SweepIntervalSeconds) * time.Second,
	}
}
