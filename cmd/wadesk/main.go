package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wadesk/wadesk/config"
	"github.com/wadesk/wadesk/internal/adminapi"
	"github.com/wadesk/wadesk/internal/app"
	"github.com/wadesk/wadesk/internal/webserver"
	"github.com/wadesk/wadesk/pkg/common"
)

var (
	configFile = flag.String("c", "/etc/wadesk.yml", "configuration file")
	initDb     = flag.Bool("initdb", false, "drop and recreate the database schema, then exit")
	showVer    = flag.Bool("v", false, "print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println("wadesk", version)
		return
	}

	cfg := config.LoadConfig(*configFile)
	common.MustMkdir(cfg.System.Workdir)

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initDb {
		application.InitDb()
		zap.L().Info("database initialized")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	webserver.Init(application)
	adminapi.InitRouter()

	application.StartBackgroundJobs(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webserver.Listen()
	})
	g.Go(func() error {
		<-ctx.Done()
		return webserver.Shutdown()
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("wadesk exited with error", zap.Error(err))
		os.Exit(1)
	}
	zap.L().Info("wadesk stopped")
}
