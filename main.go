// Command coinkick starts the Coinkick multiplayer server.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing the /ws game
//     transport, the REST admin API, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP
//     API if none is available
//
// Flags control host/port, room idle timings, debug logging, and optional
// ngrok tunneling for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/coinkick/coinkick/api"
	"github.com/coinkick/coinkick/config"
	"github.com/coinkick/coinkick/game/room"
	"github.com/coinkick/coinkick/transport/mcp"
	"github.com/coinkick/coinkick/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Coinkick Multiplayer Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "coinkick",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port"},
			&cli.DurationFlag{Name: "idle-timeout", Usage: "Evict rooms idle longer than this"},
			&cli.DurationFlag{Name: "sweep-interval", Usage: "How often the idle sweep runs"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (or use NGROK_AUTHTOKEN env var)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, resolveConfig(cmd))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP server with game transport, admin API, and MCP endpoint (default)",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServer(ctx, resolveConfig(cmd))
				},
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run an MCP stdio server with an internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runStdioMCP(ctx, resolveConfig(cmd))
				},
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

// resolveConfig overlays CLI flags on the environment-derived configuration.
func resolveConfig(cmd *cli.Command) config.Config {
	cfg := config.FromEnv()

	if v := cmd.String("host"); v != "" {
		cfg.Host = v
	}
	if v := cmd.Int("port"); v > 0 {
		cfg.Port = int(v)
	}
	if v := cmd.Duration("idle-timeout"); v > 0 {
		cfg.IdleTimeout = v
	}
	if v := cmd.Duration("sweep-interval"); v > 0 {
		cfg.SweepInterval = v
	}
	if cmd.Bool("debug") {
		cfg.Debug = true
	}
	if cmd.Bool("ngrok") {
		cfg.NgrokEnabled = true
	}
	if v := cmd.String("ngrok-auth"); v != "" {
		cfg.NgrokAuthToken = v
	}
	if v := cmd.String("ngrok-domain"); v != "" {
		cfg.NgrokDomain = v
	}

	if cfg.Debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	return cfg
}

// buildServer wires registry, gateway, and HTTP surface into one handler.
func buildServer(cfg config.Config, baseURL string) (http.Handler, *websocket.Gateway) {
	registry := room.NewRegistry()
	gateway := websocket.NewGateway(registry, cfg.SweepInterval, cfg.IdleTimeout)
	apiServer := api.NewServer(registry, gateway, cfg.WSPath)
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter, gateway
}

// runServer starts the HTTP server with game transport, admin API, and an
// /mcp proxy endpoint. If ngrok is enabled it also provisions a public
// tunnel.
func runServer(ctx context.Context, cfg config.Config) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	baseURL := fmt.Sprintf("http://%s", addr)

	mainRouter, gateway := buildServer(cfg, baseURL)
	go gateway.RunSweeper(ctx)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("%s v%s listening on %s", AppName, Version, addr)
		log.Printf("WebSocket: ws://%s%s", addr, cfg.WSPath)
		log.Printf("Admin API: %s/api/rooms", baseURL)
		log.Printf("MCP endpoint: %s/mcp", baseURL)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if cfg.NgrokEnabled {
		go runNgrokTunnel(ctx, cfg, mainRouter)
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("Server stopped")
	return nil
}

// runNgrokTunnel serves the main router through a public ngrok endpoint.
func runNgrokTunnel(ctx context.Context, cfg config.Config, handler http.Handler) {
	if cfg.NgrokAuthToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		log.Printf("Using custom ngrok domain: %s", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuthToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s%s", ngrokURL, cfg.WSPath)
	log.Printf("  Admin API (ngrok): %s/api/rooms", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses an external admin API if
// one is reachable at the configured address; otherwise it starts a minimal
// internal HTTP server on a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cfg config.Config) error {
	externalURL := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	log.Printf("Checking for external API server at %s...", externalURL)

	var baseURL string
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
		baseURL = externalURL
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internalAddr := listener.Addr().String()
		baseURL = fmt.Sprintf("http://%s", internalAddr)
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		mainRouter, gateway := buildServer(cfg, baseURL)
		go gateway.RunSweeper(ctx)

		httpServer := &http.Server{Handler: mainRouter}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()

		// Wait a moment for the server to be ready
		time.Sleep(100 * time.Millisecond)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Println("MCP stdio server ready")

	if err := mcpserver.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
