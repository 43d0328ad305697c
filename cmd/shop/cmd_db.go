package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/shop/config"
	"github.com/shashiranjanraj/shop/database/seeders"
	"github.com/shashiranjanraj/shop/internal/server"
	"github.com/shashiranjanraj/shop/pkg/database"
	"github.com/shashiranjanraj/shop/pkg/migration"
)

// bootDB loads config and opens the database connection.
func bootDB() error {
	if err := config.Load(); err != nil {
		return err
	}
	return database.Connect()
}

// shop migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close(database.DB)
		fmt.Println("Running migrations…")
		return migration.New(database.DB, os.Stdout).Run()
	},
}

// shop migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close(database.DB)
		fmt.Println("Rolling back last batch…")
		return migration.New(database.DB, os.Stdout).Rollback()
	},
}

// shop migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close(database.DB)
		return migration.New(database.DB, os.Stdout).Status()
	},
}

// shop seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register the demo customers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		app, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		fmt.Println("Running seeders…")
		return seeders.RunAll(ctx, app.Customers, os.Stdout)
	},
}
