package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	"github.com/yigit/campuspass/internal/bootstrap"
	"github.com/yigit/campuspass/internal/pkg/logger"
	"github.com/yigit/campuspass/internal/server"
)

// @title CampusPass API
// @version 1.0
// @description Ticketing back-office for student events: registry, signed QR tickets, bulk email delivery and gate validation

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token for authorization

func main() {
	fs := pflag.NewFlagSet("campuspass-api", pflag.ExitOnError)
	opts := bootstrap.BindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	srv, err := server.NewServer(context.Background(), opts)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	// Run blocks until shutdown
	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
