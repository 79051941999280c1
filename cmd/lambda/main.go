// Command lambda serves the API from AWS Lambda behind an API Gateway HTTP API.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"visamate-backend/app"
	"visamate-backend/config"
	"visamate-backend/lambdaadapter"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := config.SetupLogger(cfg)
	gin.SetMode(gin.ReleaseMode)

	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	lambda.Start(lambdaadapter.New(application.Handler()).Handle)
}
