package cli

import (
	"fmt"

	"github.com/davarch/ci-dispatch/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable <workflow_name>",
	Short: "Enable workflow by name in config.yaml",
	Args:  cobra.MatchAll(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(args[0], true)
	},
}

func setEnabled(name string, enabled bool) error {
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return err
	}

	changed := false
	for i := range cfg.Workflows {
		if cfg.Workflows[i].Name == name && cfg.Workflows[i].Enabled != enabled {
			cfg.Workflows[i].Enabled = enabled
			changed = true
		}
	}

	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}

	if !changed {
		fmt.Printf("no change (workflow %q already %s or not found)\n", name, verb)
		return nil
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	fmt.Printf("%s: %s\n", verb, name)
	return nil
}

func init() {
	enableCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := config.LoadFile(cfgPath)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		out := make([]string, 0, len(cfg.Workflows))
		for _, w := range cfg.Workflows {
			if w.Name == "" {
				continue
			}

			if toComplete == "" || startsWith(w.Name, toComplete) {
				out = append(out, w.Name)
			}
		}

		return out, cobra.ShellCompDirectiveNoFileComp
	}

	rootCmd.AddCommand(enableCmd)
}

func startsWith(s, pref string) bool {
	if len(pref) > len(s) {
		return false
	}

	return s[:len(pref)] == pref
}
