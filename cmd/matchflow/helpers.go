package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/outfitlab/matchflow/internal/storage"
)

// databasePath resolves the durable store location from config, falling
// back to the XDG data directory.
func databasePath() (string, error) {
	dbPath := viper.GetString("database.path")
	if dbPath != "" {
		return dbPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "matchflow", "matchflow.db"), nil
}

func openStore() (*storage.SQLiteStore, error) {
	dbPath, err := databasePath()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}
