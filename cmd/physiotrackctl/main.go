package main

import (
	"log"

	"physiotrack-backend/internal/ctl"
)

func main() {
	if err := ctl.New().Execute(); err != nil {
		log.Fatalf("error during command execution: %v", err)
	}
}
