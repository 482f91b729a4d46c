package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/resumable-download/async"
)

func main() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level.SetLevel(zapcore.InfoLevel)
	logger, err := config.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "download",
		Usage: "resumable single-file downloader",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   defaultDatabasePath,
				Usage:   "record transfer history in `FILE`",
				EnvVars: []string{"DOWNLOAD_DB"},
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "load defaults from YAML `FILE`",
				EnvVars: []string{"DOWNLOAD_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
				EnvVars: []string{"DOWNLOAD_VERBOSE"},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				config.Level.SetLevel(zapcore.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			getCommand(ctx),
			historyCommand(),
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
	case <-ctx.Done():
		// Give the command a chance to cancel and clean up
		stop()
		err = <-result
	}
	if err != nil {
		logger.Fatal(err.Error())
	}
}
