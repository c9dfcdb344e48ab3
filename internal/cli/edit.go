package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harun/shellbox/pkg/editor"
)

var editBatchFile string

var editCmd = &cobra.Command{
	Use:   "edit -f batch.json",
	Short: "Apply a line-edit batch to a file in the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		if editBatchFile == "" {
			return fmt.Errorf("a batch file is required (-f)")
		}

		data, err := os.ReadFile(editBatchFile)
		if err != nil {
			return fmt.Errorf("read batch file: %w", err)
		}
		var batch editor.Batch
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("parse batch file: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sess, _, cleanup, err := setup(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := editor.New(sess).Apply(batch)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "applied %d operation(s) to %s\n", result.Applied, result.Path)
		if result.Diff != "" {
			fmt.Fprintln(cmd.OutOrStdout(), result.Diff)
		}
		return nil
	},
}

func init() {
	editCmd.Flags().StringVarP(&editBatchFile, "file", "f", "", "JSON file describing the edit batch")
	rootCmd.AddCommand(editCmd)
}
