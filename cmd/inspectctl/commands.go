package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/set-night/apexinspect/internal/config"
	"github.com/set-night/apexinspect/internal/domain"
	"github.com/set-night/apexinspect/internal/report"
	"github.com/spf13/cobra"
)

var exportOutput string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := migrate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List archived inspections, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openSessions(cmd.Context())
		if err != nil {
			return err
		}
		sessions, err := svc.ListSessions(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tPROTOCOL\tIMAGE\tTITLE")
		for _, s := range sessions {
			image := "-"
			if s.HasImage() {
				image = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04"), s.Mode, image, s.Title)
		}
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print the message log of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openSessions(cmd.Context())
		if err != nil {
			return err
		}
		sess, err := svc.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		msgs, err := svc.GetHistory(cmd.Context(), sess.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n\n", sess.Title, sess.Mode)
		for _, m := range msgs {
			label := "OPERATOR"
			if m.Role == domain.RoleAssistant {
				label = "ANALYSIS"
			}
			fmt.Fprintf(out, "[%s] %s\n%s\n", m.CreatedAt.Format("15:04:05"), label, m.Content)
			if m.Usage != nil {
				fmt.Fprintf(out, "(%d tokens, %.2fs)\n", m.Usage.TotalTokens, m.Usage.Latency)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Write the PDF report of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openSessions(cmd.Context())
		if err != nil {
			return err
		}
		sess, err := svc.GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		msgs, err := svc.GetHistory(cmd.Context(), sess.ID)
		if err != nil {
			return err
		}

		pdf, err := report.Generate(msgs)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOutput, pdf, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d messages)\n", exportOutput, len(msgs))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session with its log and image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openSessions(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := svc.GetSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		if err := svc.DeleteSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", config.ReportFileName, "output file")
}
