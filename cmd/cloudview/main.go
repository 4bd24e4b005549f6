package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cloudview/cloudview/pkg/config"
	sdlhost "github.com/cloudview/cloudview/pkg/host/sdl"
	"github.com/cloudview/cloudview/pkg/logger"
	"github.com/cloudview/cloudview/pkg/monitoring"
	xos "github.com/cloudview/cloudview/pkg/os"
	"github.com/cloudview/cloudview/pkg/service"
	"github.com/cloudview/cloudview/pkg/session"
	"github.com/cloudview/cloudview/pkg/session/rtc"
	"github.com/cloudview/cloudview/pkg/thread"
	"github.com/cloudview/cloudview/pkg/viewer"
	"github.com/spf13/pflag"
)

var Version = "?"

func run() {
	conf, err := config.NewViewerConfig()
	if err != nil {
		fmt.Printf("config fail: %v", err)
		os.Exit(1)
	}
	conf.WithFlags(pflag.CommandLine)
	pflag.Parse()

	log := logger.NewConsole(conf.Viewer.Debug, "v", false)
	log.Info().Msgf("version %s", Version)
	log.Debug().Msgf("config: %+v", conf)

	h, err := sdlhost.NewHost(conf.Viewer.Title, conf.Presentation.Width, conf.Presentation.Height, log)
	if err != nil {
		log.Fatal().Err(err).Msg("window init failed")
	}

	dial := func(ctx context.Context) (session.Session, error) {
		return rtc.Dial(ctx, conf, nil, log)
	}
	v, err := viewer.New(conf, h, h.Surface(), dial, viewer.Callbacks{
		OnStatus:  func(line string) { log.Info().Msgf("status: %s", line) },
		OnWarning: func(msg string) { log.Warn().Msg(msg) },
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("viewer init failed")
	}

	services := service.Group{}
	if conf.Viewer.Monitoring.IsEnabled() {
		services.Add(monitoring.New(conf.Viewer.Monitoring, "viewer", log))
	}
	services.Start()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := v.Run(ctx); err != nil {
			log.Error().Err(err).Msg("session failed")
		}
	}()
	go func() {
		<-xos.ExpectTermination()
		cancel()
	}()

	// the SDL loop owns the calling (main) thread until shutdown
	if err := h.Run(ctx); err != nil {
		log.Error().Err(err).Msg("host loop failed")
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := services.Shutdown(stopCtx); err != nil {
		log.Error().Err(err).Msg("service shutdown failed")
	}
}

func main() {
	thread.MainWrapMaybe(run)
}
