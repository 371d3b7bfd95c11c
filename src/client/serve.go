package client

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/apimgr/weather-probe/src/pidfile"
	"github.com/apimgr/weather-probe/src/server"
)

// handleServeCommand handles the serve command
func handleServeCommand(ctx context.Context, a *app, args []string) error {
	flagSet := flag.NewFlagSet("serve", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	listen := flagSet.String("listen", a.config.Serve.Listen, "Listen address")
	rateLimit := flagSet.Int("rate-limit", a.config.Serve.RateLimit, "API requests per minute per client IP (0 disables)")
	pidFile := flagSet.String("pid-file", "", "Write the process ID to this file while serving")

	if err := flagSet.Parse(args); err != nil {
		return NewUsageError(err.Error())
	}
	if *rateLimit < 0 {
		return NewUsageError("--rate-limit must not be negative")
	}

	release, err := acquirePIDFile(*pidFile)
	if err != nil {
		return err
	}
	defer release()

	if a.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(server.Config{
		Listen:    *listen,
		RateLimit: *rateLimit,
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
		Upstream:  a.nws.BaseURL(),
	}, a.weather, a.logger)

	fmt.Fprintf(a.stdout, "Serving weather API on http://%s\n", *listen)
	if err := srv.Run(ctx); err != nil {
		return NewConnectionError(fmt.Sprintf("server: %v", err))
	}
	return nil
}

// acquirePIDFile writes path when set and returns a function removing it
func acquirePIDFile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	p := pidfile.New(path)
	if err := p.Create(); err != nil {
		if errors.Is(err, pidfile.ErrRunning) {
			return nil, NewExitError(err.Error(), ExitGeneralError)
		}
		return nil, NewConfigError(err.Error())
	}
	return func() { p.Remove() }, nil
}
