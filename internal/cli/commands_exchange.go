package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"carnote/internal/exchange"
)

func newExportCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole journal as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), app, func(e *env) error {
				var w io.Writer = cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("create %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}
				return exchange.Export(cmd.Context(), e.repo, w)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	return cmd
}

func newImportCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace journal tables from a JSON document",
		Long: `import replaces every table present in the document and leaves the
others untouched. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}
			return withEnv(cmd.Context(), app, func(e *env) error {
				tables, err := exchange.Import(cmd.Context(), e.repo, r)
				if err != nil {
					return err
				}
				names := tables.Names()
				if opts.json {
					return printJSON(cmd.OutOrStdout(), map[string][]string{"imported": names})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported: %s\n", strings.Join(names, ", "))
				return nil
			})
		},
	}
}
