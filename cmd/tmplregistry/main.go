package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/artpar/tmplregistry/internal/shell/api/middleware"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	issueToken := flag.Int64("issue-token", 0, "Print a build token for the given pipeline ID and exit")
	tokenSubject := flag.String("token-subject", "build", "Subject of the token printed by -issue-token")
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("tmplregistry %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	// Load configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	if *issueToken != 0 {
		return printBuildToken(cfg, *issueToken, *tokenSubject)
	}

	// Setup logger
	logger := SetupLogger(cfg)
	logger.Info("starting tmplregistry",
		"version", Version,
		"config", *configPath,
	)

	// Create server
	server, err := NewServer(cfg, logger)
	if err != nil {
		var sErr *ServerError
		if errors.As(err, &sErr) {
			logger.Error("failed to create server",
				"error", sErr.Err,
				"operation", sErr.Op,
			)
			return sErr.ExitCode
		}
		logger.Error("failed to create server", "error", err)
		return ExitConfigError
	}

	// Start server
	if err := server.Start(context.Background()); err != nil {
		var sErr *ServerError
		if errors.As(err, &sErr) {
			logger.Error("server error",
				"error", sErr.Err,
				"operation", sErr.Op,
			)
			return sErr.ExitCode
		}
		logger.Error("server error", "error", err)
		return ExitConfigError
	}

	return ExitSuccess
}

// printBuildToken signs a build token with the configured secret.
func printBuildToken(cfg *Config, pipelineID int64, subject string) int {
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "configuration error: auth.jwt_secret is required")
		return ExitConfigError
	}
	token, err := middleware.SignBuildToken([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, pipelineID, subject, cfg.Auth.TokenTTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		return ExitConfigError
	}
	fmt.Println(token)
	return ExitSuccess
}
