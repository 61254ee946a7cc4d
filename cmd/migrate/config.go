package main

import (
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFiles reads local env files without clobbering anything the
// runtime already set (e.g. Docker or CI).
func loadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

func migrationsDir() string {
	if v := os.Getenv("DIECAST_MIGRATIONS_DIR"); v != "" {
		return v
	}
	return "db/migrations"
}
