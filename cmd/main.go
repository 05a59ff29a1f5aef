package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/offerhub/offerhub-backend/internal/app"
	"github.com/offerhub/offerhub-backend/internal/platform/envutil"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	addr := ":" + envutil.String("PORT", "8080")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		a.Log.Info("Shutting down", "signal", sig.String())
		a.Close()
		os.Exit(0)
	}()

	a.Log.Info("Starting server", "addr", addr)
	if err := a.Run(addr); err != nil {
		a.Log.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
