package main

import (
	"context"
	"os"

	"github.com/00Thor/CCPUR-sub000/internal/pkg/logger"
	"github.com/00Thor/CCPUR-sub000/internal/server"
)

// @title College Portal API
// @version 1.0
// @description Admissions, student records, fees and documents for the college portal
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token for authorization

func main() {
	srv, err := server.NewServer(context.Background())
	if err != nil {
		// setup functions log the details
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	// blocks until shutdown
	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
