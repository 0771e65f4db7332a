package main

import (
	"fmt"
	"os"

	"github.com/manorfm/identityserver/internal/infrastructure/password"
	"github.com/spf13/cobra"
)

// @title Identity Server API
// @version 1.0
// @description OpenID Connect and OAuth 2.0 token service
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	rootCmd := &cobra.Command{
		Use:          "identityserver",
		Short:        "OpenID Connect and OAuth 2.0 token service",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCommand(), newHashSecretCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Print the stored forms of a client secret or user password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := password.HashPassword(args[0])
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sha256: %s\n", password.HashSecret(args[0]))
			fmt.Fprintf(out, "sha512: %s\n", password.HashSecret512(args[0]))
			fmt.Fprintf(out, "bcrypt: %s\n", hash)
			return nil
		},
	}
}
