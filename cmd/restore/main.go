// Command restore rebuilds the CSV data files from a SQLite snapshot written
// by "flexdesk export".
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"coworking-dbms/config"
	"coworking-dbms/coworking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log, _, err := coworking.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	snapshot := cfg.SQLitePath
	if len(os.Args) > 1 {
		snapshot = os.Args[1]
	}
	if !filepath.IsAbs(snapshot) {
		snapshot = filepath.Join(cfg.DataDir, snapshot)
	}
	if _, err := os.Stat(snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "Error: snapshot %s: %v\n", snapshot, err)
		os.Exit(1)
	}

	ctx := context.Background()
	src, err := coworking.OpenSQLite(snapshot, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening snapshot: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	db := coworking.NewDatabase(coworking.WithIndexBuckets(cfg.IndexBuckets))
	fmt.Printf("Reading snapshot %s...\n", snapshot)
	if err := src.Load(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading snapshot: %v\n", err)
		os.Exit(1)
	}

	// Remove the current data files so a failed write never leaves a mix of
	// old and restored rows.
	fmt.Println("Cleaning up existing data files...")
	for _, name := range coworking.DataFiles {
		if err := os.Remove(filepath.Join(cfg.DataDir, name)); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", name, err)
		}
	}

	dst := coworking.NewCSVGateway(cfg.DataDir, log)
	if err := dst.Save(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing data files: %v\n", err)
		os.Exit(1)
	}

	c := db.Counts()
	fmt.Println("\nRestore complete!")
	fmt.Printf("Members: %d, Workspaces: %d, Bookings: %d, Payments: %d\n",
		c.Members, c.Workspaces, c.Bookings, c.Payments)
}
