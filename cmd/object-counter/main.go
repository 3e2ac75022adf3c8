package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/object-counter/internal/capture"
	"github.com/ironsheep/object-counter/internal/config"
	"github.com/ironsheep/object-counter/internal/httpapi"
	"github.com/ironsheep/object-counter/internal/monitoring"
	"github.com/ironsheep/object-counter/internal/server"
	"github.com/ironsheep/object-counter/internal/store"
	"github.com/ironsheep/object-counter/internal/version"
)

func main() {
	httpMode := false

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("%s %s\n", version.Name, version.Version)
			fmt.Printf("  Build time: %s\n", version.BuildTime)
			fmt.Printf("  Git commit: %s\n", version.GitSHA)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		case "--http", "serve":
			httpMode = true
		default:
			fmt.Fprintf(os.Stderr, "unknown option: %s\n\n", os.Args[1])
			printUsage()
			os.Exit(2)
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	monitoring.SetDebug(settings.Debug())
	monitoring.Debugf("%s v%s (built %s, commit %s)", version.Name, version.Version, version.BuildTime, version.GitSHA)

	defaults, err := settings.LoadDefaults()
	if err != nil {
		log.Fatalf("Failed to load counting defaults: %v", err)
	}

	st, err := store.Open(settings.DBPath)
	if err != nil {
		if httpMode {
			log.Fatalf("Failed to open history database: %v", err)
		}
		log.Printf("History disabled: %v", err)
	}
	if st != nil {
		defer st.Close()
	}

	if !httpMode {
		var history server.History
		if st != nil {
			history = st
		}
		if err := server.New(defaults, history).Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	if err := serveHTTP(settings, defaults, st); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// serveHTTP runs the HTTP API, plus the capture loop when a watch directory
// is configured, until SIGINT or SIGTERM.
func serveHTTP(settings *config.Settings, defaults *config.CountingDefaults, st *store.Store) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		loop   *capture.Loop
		source capture.Source
	)
	if settings.WatchDir != "" {
		source = capture.NewDirSource(settings.WatchDir)
		loop = capture.NewLoop(source, st, defaults, settings.CaptureDir, settings.CaptureInterval)
		go func() {
			if err := loop.Run(ctx); err != nil {
				monitoring.Logf("capture loop error: %v", err)
			}
		}()
	}

	api := httpapi.New(httpapi.Options{
		Defaults:   defaults,
		Store:      st,
		Capture:    loop,
		Source:     source,
		CaptureDir: settings.CaptureDir,
	})
	return api.ListenAndServe(ctx, settings.HTTPAddr)
}

func printUsage() {
	fmt.Printf("%s - count objects in camera frames\n", version.Name)
	fmt.Println()
	fmt.Printf("Usage: %s [--http]\n", version.Name)
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --http           Serve the HTTP API instead of MCP over stdio")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=debug       Enable debug logging\n", config.EnvLogLevel)
	fmt.Printf("  %s            HTTP listen address (default :8080)\n", config.EnvHTTPAddr)
	fmt.Printf("  %s              History database (default counter.db)\n", config.EnvDBPath)
	fmt.Printf("  %s          Saved captures (default captures)\n", config.EnvCaptureDir)
	fmt.Printf("  %s            Camera drop folder; enables periodic capture\n", config.EnvWatchDir)
	fmt.Printf("  %s     Capture period (default 3s)\n", config.EnvCaptureInterval)
	fmt.Printf("  %s             Counting defaults JSON file\n", config.EnvDefaults)
	fmt.Println()
	fmt.Println("Without --http the server communicates via MCP protocol over stdin/stdout.")
}
