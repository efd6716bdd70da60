package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/aoide"
	"github.com/aretw0/aoide/internal/cli"
	"github.com/aretw0/aoide/internal/presentation/tui"
	"github.com/aretw0/aoide/pkg/domain"
)

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Run a notebook of Lua cells against a process",
	Long: `Runs every markdown cell in dir, ordered by the "order" frontmatter key,
against --process or a freshly spawned one. With --watch the notebook reruns
on every change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if !cmd.Flags().Changed("dir") && len(args) > 0 {
			dir = args[0]
		}
		process, _ := cmd.Flags().GetString("process")
		cell, _ := cmd.Flags().GetString("cell")
		jsonMode, _ := cmd.Flags().GetBool("json")
		cont, _ := cmd.Flags().GetBool("continue")
		watch, _ := cmd.Flags().GetBool("watch")

		req, err := spawnRequest(cmd)
		if err != nil {
			return err
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		pretty := !jsonMode && tui.IsTerminal(os.Stdout)
		if pretty {
			tui.PrintBanner(cmd.ErrOrStderr(), aoide.Version)
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Execute(ctx, client, cli.RunOptions{
			Dir:      dir,
			Process:  domain.ProcessRef(process),
			Spawn:    req,
			Cell:     cell,
			JSON:     jsonMode,
			Continue: cont,
			Watch:    watch,
			Pretty:   pretty,
			Out:      cmd.OutOrStdout(),
			Err:      cmd.ErrOrStderr(),
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("dir", ".", "Directory containing the notebook cells")
	runCmd.Flags().StringP("process", "p", "", "Process to run against (default: spawn one)")
	runCmd.Flags().String("cell", "", "Run only this cell")
	runCmd.Flags().Bool("json", false, "Write one JSON object per cell")
	runCmd.Flags().Bool("continue", false, "Keep going after a failed cell")
	runCmd.Flags().BoolP("watch", "w", false, "Rerun on every change")
	addSpawnFlags(runCmd)
}
