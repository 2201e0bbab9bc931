package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "games"},
		Short:   "Session management commands",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsCreateCmd())
	cmd.AddCommand(newSessionsGetCmd())
	cmd.AddCommand(newSessionsLifecycleCmd("archive", "Archive a session so it stops taking registrations"))
	cmd.AddCommand(newSessionsLifecycleCmd("restore", "Restore an archived session"))
	cmd.AddCommand(newSessionsCancelCmd())
	cmd.AddCommand(newSessionsParticipantsCmd())
	cmd.AddCommand(newSessionsRemindCmd())

	return cmd
}

func sessionPath(arg, suffix string) (string, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("invalid session id %q", arg)
	}
	return fmt.Sprintf("/api/v1/sessions/%d%s", id, suffix), nil
}

func newSessionsListCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Session

			if err := client.Get(cmd.Context(), "/api/v1/sessions?filter="+filter, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "active", "Which sessions to list: active, archived, all")

	return cmd
}

func newSessionsCreateCmd() *cobra.Command {
	var kind, date string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"kind": kind, "date": date}
			var result Session

			if err := client.Post(cmd.Context(), "/api/v1/sessions", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Session kind: city, sport, rating (required)")
	cmd.Flags().StringVar(&date, "date", "", "Date label, e.g. \"Сб 21.02\" (required)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newSessionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get session details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sessionPath(args[0], "")
			if err != nil {
				return err
			}

			var result Session

			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionsLifecycleCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sessionPath(args[0], "/"+action)
			if err != nil {
				return err
			}

			if err := client.Post(cmd.Context(), path, nil, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("Session %s: %s done", args[0], action))
			return nil
		},
	}
}

func newSessionsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a session, notify its registrants and delete it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sessionPath(args[0], "/cancel")
			if err != nil {
				return err
			}

			var result CancelResult

			if err := client.Post(cmd.Context(), path, nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionsParticipantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "participants <id>",
		Short: "List registered and thinking people for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sessionPath(args[0], "/participants")
			if err != nil {
				return err
			}

			var result []Participant

			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionsRemindCmd() *cobra.Command {
	var audience string
	var personIDs []int64

	cmd := &cobra.Command{
		Use:   "remind <id>",
		Short: "Send the session reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := sessionPath(args[0], "/reminders")
			if err != nil {
				return err
			}

			req := map[string]any{}
			if len(personIDs) > 0 {
				req["person_ids"] = personIDs
			} else {
				req["audience"] = audience
			}
			var result Report

			if err := client.Post(cmd.Context(), path, req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&audience, "audience", "all", "Audience: all, registered, not_registered")
	cmd.Flags().Int64SliceVar(&personIDs, "person", nil, "Send to these person ids instead of an audience")

	return cmd
}
