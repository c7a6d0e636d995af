// main.go
//
// Minimal entry point that delegates CLI handling to the Cobra root command in cmd/root.go

package main

import (
	"github.com/joho/godotenv"

	"github.com/outbreak-sim/outbreak-sim/cmd"
)

func main() {
	// .env is optional; missing file is fine.
	_ = godotenv.Load()
	cmd.Execute()
}
