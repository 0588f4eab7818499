package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jordanhubbard/modelhub/internal/app"
)

// version is set at build time via -ldflags.
var version = "dev"

const shutdownGrace = 30 * time.Second

// runHealthCheck probes /healthz on the local listener. addr is ":port" or
// "host:port".
func runHealthCheck(addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost%s/healthz", listenPort(addr)))
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// listenPort reduces "host:port" to ":port".
func listenPort(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i:]
		}
	}
	return ":" + addr
}

// checkConfig loads and validates the environment and prints the effective
// settings, with the admin token masked.
func checkConfig(w io.Writer) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.AdminToken != "" {
		cfg.AdminToken = "********"
	}
	_, err = fmt.Fprintf(w, "%+v\n", cfg)
	return err
}

// serve runs the API until ctx is cancelled, then drains in-flight requests.
// The bound address is sent on ready once the listener is open.
func serve(ctx context.Context, cfg app.Config, ready chan<- string) error {
	srv, err := app.NewServer(cfg, app.WithVersion(version))
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Printf("server close error: %v", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	httpServer := &http.Server{
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: /admin/v1/events holds SSE streams open.
	}

	// SIGHUP: hot-reload log level and admin token without restarting.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reload:
				newCfg, err := app.LoadConfig()
				if err != nil {
					log.Printf("config reload error: %v (keeping current config)", err)
					continue
				}
				srv.Reload(newCfg)
				log.Printf("configuration reloaded")
			}
		}
	}()

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Serve(ln) }()
	log.Printf("modelhub %s listening on %s", version, ln.Addr())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Printf("shutting down (draining in-flight requests)...")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func main() {
	healthcheck := flag.Bool("healthcheck", false, "probe the local /healthz and exit (for container HEALTHCHECK)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	check := flag.Bool("check-config", false, "validate MODELHUB_* settings, print them and exit")
	flag.Parse()

	switch {
	case *showVersion:
		fmt.Println(version)
		return
	case *healthcheck:
		addr := os.Getenv(app.EnvPrefix + "LISTEN_ADDR")
		if addr == "" {
			addr = ":8080"
		}
		if err := runHealthCheck(addr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	case *check:
		if err := checkConfig(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg, nil); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("shutdown complete")
}
