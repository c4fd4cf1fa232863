package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/JC-Coder/w-wire-api-test/app"
)

func main() {
	runtime, err := app.Build(app.Options{
		LoadDotEnv:    true,
		RunMigrations: app.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", true),
		SeedDemoUsers: app.EnvBoolOrDefault("SEED_DEMO_USERS", true),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	defer runtime.Close()

	port := strings.TrimSpace(os.Getenv("APP_PORT"))
	if port == "" {
		port = "3000"
	}

	addr := ":" + port
	if err := http.ListenAndServe(addr, runtime.Handler); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}
