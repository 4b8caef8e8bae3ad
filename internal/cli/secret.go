package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pipecheck/internal/secret"
)

func (a *app) secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage credentials stored in the macOS keychain",
		Long: `Stores credentials such as SUPABASE_SERVICE_KEY in the keychain under the
"pipecheck" service. They are read when --keychain is set or keychain: true
is in the config file, after the environment.`,
	}
	cmd.AddCommand(a.secretSetCmd(), a.secretDeleteCmd())
	return cmd
}

func (a *app) secretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME [VALUE]",
		Short: "Store a credential (reads VALUE from stdin when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			} else {
				line, err := bufio.NewReader(a.stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read value: %w", err)
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return errors.New("empty value")
			}
			if err := a.secretStore().Set(args[0], []byte(value)); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Stored %s\n", args[0])
			return nil
		},
	}
}

func (a *app) secretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.secretStore().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Deleted %s\n", args[0])
			return nil
		},
	}
}

func (a *app) secretStore() secret.SecretStore {
	if a.secrets != nil {
		return a.secrets
	}
	return secret.NewKeychainStore()
}
