package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ericalderman-safeloop/safeloop-care/internal/config"

	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <migration_file.sql>", os.Args[0])
	}

	migrationFile := os.Args[1]
	sqlContent, err := os.ReadFile(migrationFile)
	if err != nil {
		log.Fatalf("Failed to read migration file: %v", err)
	}

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Cannot open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	statements := splitStatements(string(sqlContent))
	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Statement %d failed: %v\nSQL: %s", i+1, err, stmt)
		}
	}
	fmt.Printf("Applied %d statements from %s\n", len(statements), migrationFile)
}

// splitStatements 按分号切分 SQL 文件
// 每段先剥掉行首的 -- 注释行再判定是否为空：建表语句前常有注释块，
// 不能因为段落以注释开头就整段跳过
func splitStatements(sqlContent string) []string {
	var statements []string
	for _, chunk := range strings.Split(sqlContent, ";") {
		var body []string
		for _, line := range strings.Split(chunk, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			body = append(body, line)
		}
		if len(body) == 0 {
			continue
		}
		statements = append(statements, strings.TrimSpace(strings.Join(body, "\n")))
	}
	return statements
}
