package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the bot and its stores are up",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult
			out := NewOutput(cfg.Output)

			err := client.Get(cmd.Context(), "/api/v1/health", &result)
			var reqErr *RequestError
			if errors.As(err, &reqErr) && reqErr.Status == http.StatusServiceUnavailable {
				// The body still names the backends
				if json.Unmarshal([]byte(reqErr.Body), &result) == nil && result.Status != "" {
					out.Print(result)
					return fmt.Errorf("server is up but its storage is unavailable")
				}
			}
			if err != nil {
				return err
			}

			out.Print(result)
			return nil
		},
	}
}
