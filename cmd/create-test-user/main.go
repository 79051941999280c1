package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"visamate-backend/app"
	"visamate-backend/config"
	"visamate-backend/models"
	"visamate-backend/service"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found, using environment variables: %v", err)
	}

	email := flag.String("email", "test@example.com", "account email")
	password := flag.String("password", "testpassword123", "account password")
	firstName := flag.String("first-name", "Test", "first name")
	lastName := flag.String("last-name", "User", "last name")
	visa := flag.String("visa", string(models.VisaEB1A), "visa category")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := config.SetupLogger(cfg)

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	// Sign-up also seeds the timeline and checklist
	result, err := application.Auth.SignUp(ctx, service.SignUpRequest{
		Email:        *email,
		Password:     *password,
		FirstName:    *firstName,
		LastName:     *lastName,
		VisaCategory: *visa,
	})
	if errors.Is(err, service.ErrUserExists) {
		log.Printf("User with email %s already exists", *email)
		return
	}
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("✅ Test user created successfully!\n")
	fmt.Printf("   ID: %s\n", result.User.ID)
	fmt.Printf("   Email: %s\n", result.User.Email)
	fmt.Printf("   Password: %s\n", *password)
	fmt.Printf("   Visa: %s\n", result.User.VisaCategory)
}
