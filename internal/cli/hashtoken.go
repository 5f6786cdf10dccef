package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindtree/internal/auth"
)

func newHashTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Hash a write token for MINDTREE_WRITE_TOKEN_HASH",
		Long:  "Hash the given token with bcrypt. Without an argument a random token is generated and printed first.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				generated, err := auth.GenerateToken()
				if err != nil {
					return err
				}
				token = generated
				fmt.Fprintf(out, "token: %s\n", token)
			}
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "hash:  %s\n", hash)
			return nil
		},
	}
	return cmd
}
