package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HammerMeetNail/socialreact/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local testing",
	Long: `Sign a token for the given user id with JWT_SECRET.

Examples:
  reactctl token --user 42`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
		token, err := tokens.Issue(userID)
		if err != nil {
			return fmt.Errorf("issuing token: %w", err)
		}
		if output == "json" {
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"token": token, "user_id": userID})
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().Int64("user", 0, "User id to put in the token")
	_ = tokenCmd.MarkFlagRequired("user")
}
