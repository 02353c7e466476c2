package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/HerbHall/mibagent/internal/counterstore"
)

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", "./data/counters.db", "path to the SQLite counter store")
	file := fs.String("file", "", "JSON dump of the form {db: {key: {field: value}}}")
	_ = fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: mibagent import -db path -file dump.json")
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open dump: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	n, err := importDump(context.Background(), *dbPath, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("imported %d keys into %s\n", n, *dbPath)
}

// importDump decodes a JSON dump from r and loads it into the SQLite store
// at path, returning the number of keys written.
func importDump(ctx context.Context, path string, r io.Reader) (int, error) {
	var dump counterstore.Dump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return 0, fmt.Errorf("decode dump: %w", err)
	}

	store, err := counterstore.NewSQLite(ctx, path)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	return store.Import(ctx, dump)
}
