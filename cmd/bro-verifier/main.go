package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"bro.dev/mint/config"
	"bro.dev/mint/consensus"
)

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		if ec, ok := err.(cli.ExitCoder); ok {
			os.Exit(ec.ExitCode())
		}
		os.Exit(2)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "bro-verifier",
		Usage:     "verify proof-of-work token and badge mints offline",
		Writer:    stdout,
		ErrWriter: stderr,
		// Exit codes are handled in main so tests can run the app in-process.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "deployment", Usage: "deployment name, overrides the config (" + strings.Join(consensus.Deployments(), "|") + ")"},
			&cli.StringFlag{Name: "journal", Usage: "journal directory, overrides the config"},
			&cli.IntFlag{Name: "workers", Usage: "parallel verifications, overrides the config"},
			&cli.BoolFlag{Name: "debug", Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			verifyCommand(),
			rewardCommand(),
			paramsCommand(),
			journalCommand(),
		},
	}
}

// env is the resolved runtime of one command invocation.
type env struct {
	cfg    *config.Config
	params consensus.Params
	logger *zap.Logger
	closer io.Closer
}

func loadEnv(c *cli.Context) (*env, error) {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		d := config.DefaultConfig()
		cfg = &d
	}
	if c.IsSet("deployment") {
		cfg.Deployment = c.String("deployment")
	}
	if c.IsSet("journal") {
		cfg.Journal.Path = c.String("journal")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	logger, closer, err := cfg.CreateLogger(c.Bool("debug"))
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, params: params, logger: logger, closer: closer}, nil
}

func (e *env) Close() {
	_ = e.logger.Sync()
	_ = e.closer.Close()
}
