package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/lorejam/karma"
	"github.com/lorejam/karma/internal/creds"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot/client"
	"go.viam.com/utils/rpc"
)

func main() {
	credsPath := flag.String("creds", "", "path to robot credentials JSON file")
	configPath := flag.String("config", "", "path to engine config JSON file (optional)")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	logger := logging.NewLogger("karma")
	if *debug {
		logger = logging.NewDebugLogger("karma")
	}

	if *credsPath == "" {
		logger.Fatal("-creds flag is required")
	}
	robotCreds, err := creds.Load(*credsPath)
	if err != nil {
		logger.Fatal(err)
	}
	cfg := karma.DefaultConfig()
	if *configPath != "" {
		if cfg, err = karma.LoadConfig(*configPath); err != nil {
			logger.Fatal(err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	machine, err := client.New(
		ctx,
		robotCreds.Address,
		logger,
		client.WithDialOptions(rpc.WithEntityCredentials(
			robotCreds.EntityID,
			rpc.Credentials{
				Type:    rpc.CredentialsTypeAPIKey,
				Payload: robotCreds.APIKey,
			})),
	)
	if err != nil {
		logger.Fatal(err)
	}
	defer machine.Close(context.Background())

	logger.Info("Connected to robot")
	logger.Debug("Resources:", machine.ResourceNames())

	r, err := karma.NewRobot(ctx, machine, cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}

	if err := karma.Run(ctx, r, os.Stdin, os.Stdout); err != nil {
		logger.Fatal(err)
	}
}
