// Package main provides admin account management for the reserve tracker.
//
// Usage:
//
//	admin create -email ops@example.com -password '...'
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/eth-reserves/internal/config"
	"github.com/eth-reserves/internal/service"
	"github.com/eth-reserves/internal/storage"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "create" {
		fmt.Fprintln(os.Stderr, "usage: admin create -email <email> -password <password>")
		os.Exit(2)
	}

	fs := flag.NewFlagSet("create", flag.ExitOnError)
	email := fs.String("email", "", "Admin email")
	password := fs.String("password", "", "Admin password (at least 8 characters)")
	_ = fs.Parse(os.Args[2:])

	if err := create(*email, *password); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
}

func create(email, password string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	defer postgres.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Creating an admin never issues tokens
	admins := service.NewAdminService(storage.NewAdminRepository(postgres), nil)
	admin, err := admins.CreateAdmin(ctx, service.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	log.Printf("Created admin %s (%s)", admin.Email, admin.ID)
	return nil
}
