//go:build !js && !wasm
// +build !js,!wasm

// Command crysense-server exposes the cry classifier over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/CrySense/internal/cliconfig"
	"github.com/himanishpuri/CrySense/pkg/crysense"
	"github.com/himanishpuri/CrySense/pkg/crysense/model"
)

var rootCmd = &cobra.Command{
	Use:           "crysense-server",
	Short:         "HTTP API for infant cry classification",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	cliconfig.AddFlags(rootCmd)
	rootCmd.Flags().Int("port", 8080, "HTTP server port")
	rootCmd.Flags().String("origins", "*", "comma-separated list of allowed CORS origins (use * for all)")
	rootCmd.Flags().Int64("max-upload-mb", 50, "maximum upload size in MiB")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func parseOrigins(s string) []string {
	if s == "*" {
		return []string{"*"}
	}
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func run(cmd *cobra.Command, args []string) error {
	settings, v, err := cliconfig.Load(cmd)
	if err != nil {
		return err
	}
	log, err := settings.NewLogger()
	if err != nil {
		return err
	}

	service, err := crysense.NewService(settings.ServiceOptions(log)...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           v.GetInt("port"),
		DBPath:         settings.DBPath,
		TempDir:        settings.TempDir,
		ModelPath:      settings.ModelPath,
		History:        settings.History,
		AllowedOrigins: parseOrigins(v.GetString("origins")),
		MaxUploadBytes: v.GetInt64("max-upload-mb") << 20,
	}

	server := NewServer(service, config, log)
	if settings.ModelPath != "" {
		artifact, err := model.Load(settings.ModelPath)
		if err != nil {
			// Serve anyway; classification answers 503 until a model loads.
			log.Errorf("Failed to load model: %v", err)
			server.SetModelError(err)
		} else {
			server.SetModel(artifact)
		}
	} else {
		log.Warnf("No model configured; /api/classify will answer 503")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Start(ctx)
}
