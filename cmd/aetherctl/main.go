package main

import (
	"context"
	"log"

	"github.com/skygenesisenterprise/aether-identity/cmd/aetherctl/cmd"
	"github.com/skygenesisenterprise/aether-identity/tracing"
)

func main() {
	tp, err := tracing.InitTracerProvider("aether-identity-ctl")
	if err != nil {
		log.Fatalf("Failed to initialize TracerProvider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down TracerProvider: %v", err)
		}
	}()

	cmd.Execute()
}
