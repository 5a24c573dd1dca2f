package main

import (
	"evcentral/internal"
	"evcentral/internal/config"
	"evcentral/server"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "evcentral",
		Usage: "OCPP 1.6 central system",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yml",
				Usage:   "path to the configuration file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "accept unknown id tags and log raw frames",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Println("central system stopped with error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	conf, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.Bool("debug") {
		conf.IsDebug = true
	}

	logger, err := internal.NewLogger(conf.Log.Level, conf.Log.Format, conf.Location())
	if err != nil {
		return fmt.Errorf("logger setup failed: %w", err)
	}
	defer logger.Sync()
	logger.SetDebugMode(conf.IsDebug)

	centralSystem, err := server.NewCentralSystem(conf, logger)
	if err != nil {
		return fmt.Errorf("central system initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return centralSystem.Start(ctx)
}
