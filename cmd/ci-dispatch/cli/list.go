package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davarch/ci-dispatch/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var (
	listOnlyEnabled  bool
	listOnlyDisabled bool
	listJSON         bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows from config.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(cfgPath)
		if err != nil {
			return err
		}

		items := make([]config.Workflow, 0, len(cfg.Workflows))
		for _, w := range cfg.Workflows {
			if listOnlyEnabled && !w.Enabled {
				continue
			}
			if listOnlyDisabled && w.Enabled {
				continue
			}
			items = append(items, w)
		}

		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tTYPE\tTARGET\tREF\tENABLED")
		for _, it := range items {
			name := it.Name
			if name == "" {
				name = "(unnamed)"
			}
			target, ref := it.Repo+"/"+it.WorkflowFile, it.Ref
			if it.Type == "azure" {
				target = fmt.Sprintf("%s/%s#%d", it.Organization, it.Project, it.PipelineID)
				ref = it.Branch
			}
			en := "false"
			if it.Enabled {
				en = "true"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, it.Type, target, ref, en)
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listOnlyEnabled, "enabled", false, "show only enabled workflows")
	listCmd.Flags().BoolVar(&listOnlyDisabled, "disabled", false, "show only disabled workflows")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")

	listCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if listOnlyEnabled && listOnlyDisabled {
			return fmt.Errorf("flags --enabled and --disabled are mutually exclusive")
		}
		return nil
	}

	rootCmd.AddCommand(listCmd)
}
