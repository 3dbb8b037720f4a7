package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gmicfx/internal/config"
	"github.com/hupe1980/gmicfx/internal/filter"
)

func newCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for gmicfx.

Besides commands and flags, the scripts complete filter paths from the
cached catalog, so run "gmicfx update" once before relying on them:

  $ gmicfx run --path bl<TAB>
  blur/box       blur/gaussian

  $ gmicfx show colors/<TAB>

Bash:
  $ source <(gmicfx completion bash)

Zsh:
  $ gmicfx completion zsh > "${fpath[1]}/_gmicfx"

Fish:
  $ gmicfx completion fish > ~/.config/fish/completions/gmicfx.fish

PowerShell:
  PS> gmicfx completion powershell | Out-String | Invoke-Expression
`,
		// Override parent PersistentPreRunE: completion needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:         []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}

			return nil
		},
	}

	return cmd
}

// completeFilterPaths offers the visible catalog paths starting with
// toComplete, each described by the filter's display name. Completion
// callbacks run without PersistentPreRunE, so the config is loaded here.
func completeFilterPaths(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var cfgFile string
	if f := cmd.Flag("config"); f != nil {
		cfgFile = f.Value.String()
	}

	cfg, err := config.Load(cmd, cfgFile)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	store, err := loadStore(cfg)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	prefix := filter.NormalizePath(toComplete)

	var out []string

	for _, d := range store.Load().Definitions() {
		if d.Hidden || !strings.HasPrefix(d.Path, prefix) {
			continue
		}

		out = append(out, d.Path+"\t"+d.Name)
	}

	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeFirstFilterPath completes the single positional path argument.
func completeFirstFilterPath(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	return completeFilterPaths(cmd, args, toComplete)
}
