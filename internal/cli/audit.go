package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/shellbox/internal/audit"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent command decisions from the audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Audit.Enabled {
			return fmt.Errorf("audit trail is disabled in config")
		}

		trail, err := audit.Open(audit.Config{
			Path:      cfg.Audit.Path,
			Retention: cfg.Audit.Retention(),
		})
		if err != nil {
			return err
		}
		defer func() { _ = trail.Close() }()

		events, err := trail.Recent(auditLimit)
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  %s  %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Status, e.SessionID, e.Command)
			if e.Detail != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", e.Detail)
			}
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum number of events to show")
	rootCmd.AddCommand(auditCmd)
}
