// ABOUTME: The serve command: a local fake CRM Web API backed by SQLite.
// ABOUTME: Also resolves and validates database paths shared with the logs command.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/2389/dataloader/internal/fakecrm"
	"github.com/2389/dataloader/internal/schema"
	"github.com/2389/dataloader/internal/store"
)

var (
	port         string
	dbPath       string
	token        string
	seedAccounts int
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a local fake CRM server",
		Long: `Start a fake CRM Web API on the specified port.

The server provides:
  • /api/data/v9.2/WhoAmI, and GET/POST on accounts, contacts, tasks,
    appointments, ljr_servicerequests, and ljr_eactvitities
  • Health check at http://localhost:PORT/healthz
  • A request log readable with 'dataloader logs'

Authentication:
  Use Bearer tokens in the format: Bearer user:USERNAME
  With --token only that exact token is accepted.

Environment Variables:
  DATALOADER_PORT       Server port (default: 9000)
  DATALOADER_DB_PATH    Database path`,
		RunE: runServe,
	}
	serveCmd.Flags().StringVarP(&port, "port", "p", getEnv("DATALOADER_PORT", "9000"), "Port to listen on")
	serveCmd.Flags().StringVarP(&dbPath, "db", "d", getDefaultDBPath(), "Database path")
	serveCmd.Flags().StringVar(&token, "token", "", "Require this bearer token (default: any token)")
	serveCmd.Flags().IntVar(&seedAccounts, "seed-accounts", 0, "Create this many random accounts on startup")
	return serveCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	var err error
	dbPath, err = validateAndCleanDBPath(dbPath)
	if err != nil {
		return err
	}

	s, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	srv := fakecrm.NewServer(s, fakecrm.WithToken(token))
	if seedAccounts > 0 {
		ids, err := srv.SeedAccounts(gofakeit.New(0), seedAccounts)
		if err != nil {
			return fmt.Errorf("seed accounts: %w", err)
		}
		log.Printf("✓ Seeded %d accounts", len(ids))
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           newServer(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Fake CRM listening on %s", httpServer.Addr)
	log.Printf("Entity sets: %s", entitySets())
	log.Printf("Database: %s", dbPath)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newServer(srv *fakecrm.Server) http.Handler {
	return middleware.Logger(srv.Handler())
}

// entitySets lists the collections the fake CRM serves.
func entitySets() string {
	defs := schema.All()
	sets := make([]string, len(defs))
	for i, d := range defs {
		sets[i] = d.EntitySet
	}
	return strings.Join(sets, ", ")
}

// validateAndCleanDBPath validates and cleans a database path.
// Handles Unix/Linux, macOS, and Windows paths (including UNC and drive letters).
func validateAndCleanDBPath(path string) (string, error) {
	cleanPath := strings.TrimSpace(path)
	cleanPath = filepath.Clean(cleanPath)

	// Reject empty and root-like paths
	if cleanPath == "" || cleanPath == "." || cleanPath == "/" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}

	// Windows: reject bare drive letters (e.g., "C:", "D:")
	if runtime.GOOS == "windows" && len(cleanPath) == 2 && cleanPath[1] == ':' {
		return "", fmt.Errorf("database path cannot be a bare drive letter")
	}

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("database path cannot contain '..'")
	}

	badPatterns := []string{".git", ".svn", "node_modules", ".env", "credentials", "secret"}
	lowerPath := strings.ToLower(cleanPath)
	for _, pattern := range badPatterns {
		if strings.Contains(lowerPath, pattern) {
			return "", fmt.Errorf("database path cannot contain '%s' directory", pattern)
		}
	}

	return cleanPath, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getDefaultDBPath returns the default database path.
// Priority: DATALOADER_DB_PATH > ./dataloader.db > XDG_DATA_HOME/dataloader/dataloader.db
func getDefaultDBPath() string {
	if envPath := strings.TrimSpace(os.Getenv("DATALOADER_DB_PATH")); envPath != "" {
		envPath = filepath.Clean(envPath)
		if envPath != "." {
			return envPath
		}
		log.Printf("Warning: DATALOADER_DB_PATH is invalid (empty or '.'), using default path")
	}

	cwdPath := "./dataloader.db"
	if _, err := os.Stat(cwdPath); err == nil {
		return cwdPath
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil || homeDir == "" || homeDir == "/" {
			return cwdPath
		}
		if runtime.GOOS == "windows" {
			dataHome = os.Getenv("LOCALAPPDATA")
			if dataHome == "" {
				dataHome = filepath.Join(homeDir, "AppData", "Local")
			}
		} else {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(dataHome, "dataloader")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Printf("Warning: Could not create data directory %s: %v, using ./dataloader.db", dataDir, err)
		return cwdPath
	}
	return filepath.Join(dataDir, "dataloader.db")
}
