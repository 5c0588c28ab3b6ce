package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/seat-scheduler/internal/infrastructure/crypto"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "keys",
		Short:       "Generate SESSION_HASH_KEY, SESSION_BLOCK_KEY and CRED_ENC_KEY values (base64)",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range []string{"SESSION_HASH_KEY", "SESSION_BLOCK_KEY", "CRED_ENC_KEY"} {
				key, err := crypto.GenerateKey()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "export %s=%s\n", name, key)
			}
			return nil
		},
	}
}
