package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	host   string
	apiKey string
	actor  string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "tourneykit",
		Short: "Badge derivation and role authorization tools",
		Long: `A command-line interface for the tourneykit rule engines.

The badges and roles commands evaluate rules locally. The profile and
health commands talk to a running tourneykit server.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.host, "host", envOr("TOURNEYKIT_HOST", "http://localhost:8080/api"), "Base URL of the server API")
	root.PersistentFlags().StringVar(&g.apiKey, "api-key", os.Getenv("TOURNEYKIT_API_KEY"), "API key sent to the server")
	root.PersistentFlags().StringVar(&g.actor, "actor-token", os.Getenv("TOURNEYKIT_ACTOR_TOKEN"), "Actor token for role routes")

	root.AddCommand(newBadgesCmd())
	root.AddCommand(newRolesCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newProfileCmd(g))
	root.AddCommand(newHealthCmd(g))
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func Execute() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tourneykit: %s\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
