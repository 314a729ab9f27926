package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentdeck/agentctl/internal/auth"
	agentctx "github.com/agentdeck/agentctl/internal/context"
	clierrors "github.com/agentdeck/agentctl/internal/errors"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

func (a *app) newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored credentials",
	}
	cmd.AddCommand(
		a.newLoginCommand(),
		a.newAuthStatusCommand(),
		a.newLogoutCommand(),
	)
	return cmd
}

func (a *app) newLoginCommand() *cobra.Command {
	var contextName string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token in a context",
		Long: `Store an access token in a context of the agentctl config file.

The token is taken from --token or AGENTCTL_TOKEN, or prompted for on a
terminal. --api-url sets the API URL of the context. The context becomes the
current one.`,
		Example: `  agentctl auth login
  agentctl auth login --context prod --api-url https://api.example.com --token "$TOKEN"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token := a.cfg.Token
			if token == "" {
				if !a.interactive() {
					return clierrors.ValidationError(errors.New("no token given"), "Pass --token when not running in a terminal.")
				}
				prompt := promptui.Prompt{
					Label: "Access token",
					Mask:  '*',
					Validate: func(s string) error {
						if strings.TrimSpace(s) == "" {
							return errors.New("token must not be empty")
						}
						return nil
					},
				}
				value, err := prompt.Run()
				if err != nil {
					return fmt.Errorf("prompt failed: %w", err)
				}
				token = strings.TrimSpace(value)
			}

			if err := auth.CheckExpiry(token, time.Now(), 0); err != nil {
				return clierrors.AuthError(err)
			}
			var apiURL string
			if cmd.Flags().Changed("api-url") {
				apiURL = a.cfg.APIURL
			}
			if err := a.cfg.Store().Login(contextName, apiURL, token); err != nil {
				return clierrors.ConfigError(err, "")
			}
			a.console.Success("Logged in", "context", contextName, "config", a.cfg.Store().Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&contextName, "context", "default", "name of the context")
	return cmd
}

func (a *app) newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the credential in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := a.cfg.TokenProvider().Token(cmd.Context())
			if err != nil {
				return err
			}
			claims, err := auth.Inspect(token)
			if err != nil {
				return clierrors.AuthError(err)
			}

			name := a.cfg.ContextName
			if name == "" {
				name = "-"
			}
			rows := [][]string{
				{"Context", name},
				{"API URL", a.cfg.APIURL},
			}
			if claims.Subject != "" {
				rows = append(rows, []string{"Subject", claims.Subject})
			}
			if claims.Email != "" {
				rows = append(rows, []string{"Email", claims.Email})
			}
			if !claims.ExpiresAt.IsZero() {
				rows = append(rows, []string{"Expires", claims.ExpiresAt.Local().Format(time.RFC3339)})
			}
			return a.out.Table([]string{"FIELD", "VALUE"}, rows)
		},
	}
}

func (a *app) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the token of the current context",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.cfg.Store().Logout(); err != nil {
				if errors.Is(err, agentctx.ErrNoCurrentContext) {
					a.console.Warning("Not logged in")
					return nil
				}
				return clierrors.ConfigError(err, "")
			}
			a.console.Success("Logged out")
			return nil
		},
	}
}
