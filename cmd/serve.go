package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/apostle/internal/server"
	"github.com/desertthunder/apostle/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the console gateway until interrupted.
//
// The gateway proxies to the origin the Runner resolved at startup. It only
// answers requests addressed to its own listen address.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	listen := r.config.Server
	if host := cmd.String("host"); host != "" {
		listen.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		listen.Port = port
	}
	addr := listen.Addr()
	page := &url.URL{Scheme: "http", Host: addr}

	if r.baseURL == page.String() {
		return fmt.Errorf("%w: API origin resolved to the gateway itself, set api.base_url", shared.ErrInvalidConfig)
	}

	gateway, err := server.NewGateway(server.GatewayOptions{
		Addr:      addr,
		Backend:   r.baseURL,
		Transport: r.httpClient.Transport,
		Session:   r.session,
		Logger:    r.logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlain("Console gateway on http://%s (API %s)\n", addr, r.baseURL)
	if cmd.Bool("open") {
		if err := shared.OpenBrowser(page.String() + server.SessionPath); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	return gateway.ListenAndServe(ctx)
}
