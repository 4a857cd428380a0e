package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abverdict/abverdict/internal/store"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Show the API token",
		Long: `Show the token that protects the /api endpoints.

Use this when you've scrolled past the startup message or need to
call the API from a script.

Example:
  abv token`,
		Args: cobra.NoArgs,
		RunE: runToken,
	}
}

func runToken(cmd *cobra.Command, args []string) error {
	token, err := readToken(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Token: %s\n", token)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  curl -H 'Authorization: Bearer %s' http://localhost:%d/api/experiments\n", token, cfg.Server.Port)
	return nil
}

// readToken prefers the token file written by a running server and falls
// back to the token persisted in the database.
func readToken(cmd *cobra.Command) (string, error) {
	data, err := os.ReadFile(getTokenFilePath())
	if err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	var token string
	err = withStore(func(s *store.SQLiteStore) error {
		var err error
		token, err = s.GetSetting(cmd.Context(), store.SettingServerToken)
		return err
	})
	if errors.Is(err, store.ErrNotFound) || (err == nil && token == "") {
		return "", fmt.Errorf("no token yet. Start the server with: abv serve")
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return token, nil
}
