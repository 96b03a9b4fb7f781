package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"showtracker/pkg/backend"
	"showtracker/pkg/initialization"
)

func findBackend(comp *initialization.InitializedComponents, name string) (backend.Backend, error) {
	for _, b := range comp.Backends {
		if strings.EqualFold(b.Descriptor().Name, name) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no configured backend named %q", name)
}

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var (
		username string
		password string
		apiKey   string
		cookies  string
		logout   bool
	)

	cmd := &cobra.Command{
		Use:   "login <backend>",
		Short: "Store credentials for a backend",
		Long: `Store credentials for a backend in the state file.

Backends that support it verify a username and password before they are
stored. API keys and cookies are stored as given.

Examples:
  showtracker login Easynews --username alice --password secret
  showtracker login NZBgeek --api-key 0123456789abcdef
  showtracker login NZBgeek --logout`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := ctx.components()
			if err != nil {
				return err
			}
			b, err := findBackend(comp, args[0])
			if err != nil {
				return err
			}
			name := b.Descriptor().Name
			creds := comp.Credentials

			if logout {
				for _, key := range []string{backend.LoginKey(name), backend.APIKeyKey(name), backend.CookiesKey(name)} {
					if err := creds.Set(key, ""); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed stored credentials for %s\n", name)
				return nil
			}

			if username == "" && apiKey == "" && cookies == "" {
				return fmt.Errorf("nothing to store: pass --username/--password, --api-key or --cookies")
			}

			if username != "" {
				if password == "" {
					return fmt.Errorf("--password is required with --username")
				}
				if strings.Contains(username, ":") {
					return fmt.Errorf("username must not contain ':'")
				}
				if loginer, ok := b.(backend.Loginer); ok {
					state, err := loginer.LoginWith(cmd.Context(), username, password)
					if err != nil {
						return fmt.Errorf("login to %s failed: %w", name, err)
					}
					if state.Cookies != "" {
						if err := creds.Set(backend.CookiesKey(name), state.Cookies); err != nil {
							return err
						}
					}
				}
				if err := creds.Set(backend.LoginKey(name), username+":"+password); err != nil {
					return err
				}
			}
			if apiKey != "" {
				if err := creds.Set(backend.APIKeyKey(name), apiKey); err != nil {
					return err
				}
			}
			if cookies != "" {
				if err := creds.Set(backend.CookiesKey(name), cookies); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key")
	cmd.Flags().StringVar(&cookies, "cookies", "", "Session cookies")
	cmd.Flags().BoolVar(&logout, "logout", false, "Remove all stored credentials for the backend")
	return cmd
}
