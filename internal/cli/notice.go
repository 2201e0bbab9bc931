package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule announcement commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the schedule announcement",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result ScheduleText

			if err := client.Get(cmd.Context(), "/api/v1/schedule", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <text>...",
		Short: "Replace the schedule announcement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"text": strings.Join(args, " ")}

			if err := client.Put(cmd.Context(), "/api/v1/schedule", req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Schedule updated")
			return nil
		},
	})

	return cmd
}

func newPeopleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "people",
		Short: "List onboarded people",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Person

			if err := client.Get(cmd.Context(), "/api/v1/people", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newBroadcastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast <text>...",
		Short: "Send a message to everyone who completed onboarding",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"text": strings.Join(args, " ")}
			var result Report

			if err := client.Post(cmd.Context(), "/api/v1/broadcast", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
