// Command rentctl drives the tenant payment flow against a running API:
// quote a house, push a payment prompt, watch it settle, then join.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

type globals struct {
	api   string
	token string
}

func main() {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "rentctl",
		Short:   "rentctl - tenant payments from the command line",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVar(&g.api, "api", envOr("RENTFLOW_API", "http://localhost:3000"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&g.token, "token", os.Getenv("RENTFLOW_TOKEN"), "bearer access token")

	rootCmd.AddCommand(quoteCmd(g))
	rootCmd.AddCommand(payCmd(g))
	rootCmd.AddCommand(watchCmd(g))
	rootCmd.AddCommand(joinCmd(g))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
