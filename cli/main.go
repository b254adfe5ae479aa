package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lorejam/karma"
	"github.com/lorejam/karma/internal/creds"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/robot/client"
	goutils "go.viam.com/utils"
	"go.viam.com/utils/rpc"
)

const usage = `command line, one of:
  push x y z theta radius [arm]
  pusp pose x y z theta radius [arm]
  draw|vdra x y z theta radius dist [arm]
  drap|vdrp pose x y z theta radius dist [arm]
  find arm eye
  tool|toop attach arm x y z
  tool get | tool remove`

func main() {
	credsPath := flag.String("creds", "", "path to robot credentials JSON file")
	configPath := flag.String("config", "", "path to engine config JSON file (optional)")
	flag.Usage = func() {
		flag.CommandLine.Output().Write([]byte("usage: karma-cli -creds file [-config file] " + usage + "\n"))
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := logging.NewLogger("karma-cli")

	if *credsPath == "" {
		logger.Fatal("-creds flag is required")
	}
	if flag.NArg() == 0 {
		logger.Fatal("a command is required; " + usage)
	}
	cmd, err := karma.ParseLine(strings.Join(flag.Args(), " "))
	if err != nil {
		logger.Fatal(err)
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

	r, err := karma.NewRobot(ctx, machine, cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}

	// Ctrl-C stops the arms instead of leaving them mid-motion.
	goutils.PanicCapturingGo(func() {
		<-ctx.Done()
		if err := r.Interrupt(context.Background()); err != nil {
			logger.Warnf("interrupt: %v", err)
		}
	})

	logger.Infof("=== Running %s ===", cmd["command"])
	resp, err := r.DoCommand(ctx, cmd)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Reply: %v", resp)
}
