package main

import (
	// Load .env from the working directory before config reads COPILOT_*.
	_ "github.com/joho/godotenv/autoload"

	"github.com/qcrao/copilot/internal/cli"
)

// version, commit, date are injected by the linker via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.Execute(version, commit, date)
}
