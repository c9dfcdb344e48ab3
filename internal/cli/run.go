package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var runBypass bool

var runCmd = &cobra.Command{
	Use:   "run -- <command>",
	Short: "Run one command in a sandboxed session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sess, _, cleanup, err := setup(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := sess.Acquire(); err != nil {
			return err
		}
		defer func() { _ = sess.Release() }()

		lines, err := sess.Run(strings.Join(args, " "), runBypass)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runBypass, "bypass", false, "skip the allow-list and script gate (deny-list still applies)")
	rootCmd.AddCommand(runCmd)
}
