// Command brainc-ledger prints the contents of a brainc build ledger without
// going through the compiler. It opens the database read-only.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

func main() {
	dbPath := filepath.Join(".brainc", "ledger.db")
	limit := 10

	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n < 1 {
			fmt.Println("Usage: brainc-ledger [ledger.db] [limit]")
			os.Exit(1)
		}
		limit = n
	}

	if _, err := os.Stat(dbPath); err != nil {
		fmt.Printf("Error opening ledger: %v\n", err)
		os.Exit(1)
	}
	if err := queryLedger(dbPath, limit); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func queryLedger(dbPath string, limit int) error {
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(dbPath)+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	// Check table schema
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return fmt.Errorf("query tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		rows.Scan(&name)
		tables = append(tables, name)
	}
	rows.Close()
	fmt.Printf("Tables: %v\n", tables)

	// Counts
	var artifacts, sessions, failures int
	db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT session_id) FROM artifacts").Scan(&artifacts, &sessions)
	db.QueryRow("SELECT COUNT(*) FROM failures").Scan(&failures)
	fmt.Printf("Total artifacts: %d across %d sessions\n", artifacts, sessions)
	fmt.Printf("Total failures: %d\n", failures)

	// Per-target breakdown
	targetRows, err := db.Query("SELECT target, COUNT(*), COALESCE(SUM(tokens), 0) FROM artifacts GROUP BY target ORDER BY target")
	if err == nil {
		fmt.Println("\nBy target:")
		for targetRows.Next() {
			var target string
			var count, tokens int
			targetRows.Scan(&target, &count, &tokens)
			fmt.Printf("  %-8s %4d artifacts  %7d tokens\n", target, count, tokens)
		}
		targetRows.Close()
	}

	// Recent writes
	recent, err := db.Query(`
		SELECT compiled_at, definition_id, target, path, content_hash
		FROM artifacts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return fmt.Errorf("query artifacts: %w", err)
	}
	fmt.Printf("\nRecent artifacts:\n")
	fmt.Println("─────────────────────────────────────────────────────────────")
	i := 0
	for recent.Next() {
		var compiledAt, id, target, path, hash string
		if err := recent.Scan(&compiledAt, &id, &target, &path, &hash); err != nil {
			fmt.Printf("Scan error: %v\n", err)
			continue
		}
		i++
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Printf("%d. %s  %s [%s] %s  %s\n", i, compiledAt, id, target, path, hash)
	}
	recent.Close()

	// Failures by kind
	kindRows, err := db.Query("SELECT kind, COUNT(*) FROM failures GROUP BY kind ORDER BY kind")
	if err == nil {
		fmt.Println("\nFailures by kind:")
		for kindRows.Next() {
			var kind string
			var count int
			kindRows.Scan(&kind, &count)
			fmt.Printf("  %-12s %d\n", kind, count)
		}
		kindRows.Close()
	}
	return nil
}
