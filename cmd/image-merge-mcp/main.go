package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/image-merge-mcp/internal/httpapi"
	"github.com/ironsheep/image-merge-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	httpMode := false

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("image-merge-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		case "http":
			httpMode = true
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q, see --help\n", os.Args[1])
			os.Exit(2)
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := configFromEnv(os.LookupEnv)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Debug {
		log.Printf("Image Merge MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		log.Printf("config: %+v", cfg.Config)
	}

	if httpMode || cfg.HTTPAddr != "" {
		if err := runHTTP(cfg); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	srv := server.NewWithConfig(cfg.Config)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printHelp() {
	fmt.Println("image-merge-mcp - merge images side by side, stacked, or as a grid")
	fmt.Println()
	fmt.Println("Usage: image-merge-mcp [http] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  http             Serve the HTTP API instead of MCP over stdio")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  IMAGE_MERGE_LOG_LEVEL=debug       Enable debug logging")
	fmt.Println("  IMAGE_MERGE_GAP=10                Default gap between images in pixels")
	fmt.Println("  IMAGE_MERGE_PREVIEW_SIZE=800      Max size of preview merges")
	fmt.Println("  IMAGE_MERGE_FINAL_SIZE=2500       Max size of final merges")
	fmt.Println("  IMAGE_MERGE_BACKGROUND=transparent Default canvas colour")
	fmt.Println("  IMAGE_MERGE_DECODE_TIMEOUT=30s    Time limit for loading one image")
	fmt.Println("  IMAGE_MERGE_MAX_IMAGE_PIXELS=50000000   Largest source image accepted")
	fmt.Println("  IMAGE_MERGE_MAX_CANVAS_PIXELS=100000000 Largest merged canvas")
	fmt.Println("  IMAGE_MERGE_HTTP_ADDR=:8080       Serve the HTTP API on this address")
	fmt.Println()
	fmt.Println("Without http, the server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

// runHTTP serves the HTTP API until SIGINT or SIGTERM.
func runHTTP(cfg appConfig) error {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := cfg.HTTPAddr
	if addr == "" {
		addr = defaultHTTPAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(cfg.Config)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting HTTP API on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
