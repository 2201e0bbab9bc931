package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/gamenight/internal/services/auth"
)

func newTokenCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate an organizer API token and its hash",
		Long: `Generates a random organizer token and prints it with the bcrypt hash
the server expects in ADMIN_TOKEN_HASH. With --save the token is also
written to the token file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := auth.GenerateToken()
			hash, err := auth.HashToken(token)
			if err != nil {
				return err
			}

			if save {
				if err := cfg.SaveToken(token); err != nil {
					return err
				}
			}

			out := NewOutput(cfg.Output)
			out.Print(TokenResult{Token: token, Hash: hash})
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Write the token to the token file")

	return cmd
}
