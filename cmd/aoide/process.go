package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/aoide/pkg/domain"
)

var spawnCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Spawn a process and wait for it to come alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := spawnRequest(cmd)
		if err != nil {
			return err
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		ctx := cmd.Context()
		if project, _ := cmd.Flags().GetString("project"); project != "" {
			p, err := client.Projects.EnsureProcess(ctx, project, client.Coordinator, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), domain.SpawnResult{Process: p.Process, Readiness: p.Readiness})
		}

		res, err := client.Coordinator.Spawn(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <process> [code]",
	Short: "Evaluate Lua in a process",
	Long:  `Evaluates code given as an argument, from --file, or from stdin when neither is set.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := codeArg(cmd, args)
		if err != nil {
			return err
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		raw, err := client.Coordinator.Evaluate(cmd.Context(), domain.ProcessRef(args[0]), code)
		if err != nil {
			return err
		}
		return printAnswer(cmd, raw)
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <process>",
	Short: "Send a tagged message to a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawTags, _ := cmd.Flags().GetStringArray("tag")
		tags, err := domain.ParseTags(rawTags)
		if err != nil {
			return err
		}
		data, _ := cmd.Flags().GetString("data")

		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		raw, err := client.Coordinator.Write(cmd.Context(), domain.ProcessRef(args[0]), tags, data)
		if err != nil {
			return err
		}
		return printAnswer(cmd, raw)
	},
}

var stateCmd = &cobra.Command{
	Use:   "state <process> [path]",
	Short: "Read process state (default path: now)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "now"
		if len(args) > 1 {
			path = args[1]
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		state, err := client.Coordinator.State(cmd.Context(), domain.ProcessRef(args[0]), path)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), state)
	},
}

func init() {
	rootCmd.AddCommand(spawnCmd, evalCmd, writeCmd, stateCmd)

	addSpawnFlags(spawnCmd)
	spawnCmd.Flags().String("project", "", "Attach the process to a project, reusing one already attached")

	evalCmd.Flags().StringP("file", "f", "", "Read the Lua code from a file")
	evalCmd.Flags().Bool("raw", false, "Print the whole node answer as JSON")

	writeCmd.Flags().StringArrayP("tag", "t", nil, "Message tag as Name=Value (repeatable)")
	writeCmd.Flags().StringP("data", "d", "", "Message data")
	writeCmd.Flags().Bool("raw", false, "Print the whole node answer as JSON")
}

func addSpawnFlags(cmd *cobra.Command) {
	cmd.Flags().String("module", "", "Module to run (default from config)")
	cmd.Flags().StringArray("spawn-tag", nil, "Spawn tag as Name=Value (repeatable)")
	cmd.Flags().String("spawn-data", "", "Spawn payload")
}

func spawnRequest(cmd *cobra.Command) (domain.SpawnRequest, error) {
	module, _ := cmd.Flags().GetString("module")
	rawTags, _ := cmd.Flags().GetStringArray("spawn-tag")
	data, _ := cmd.Flags().GetString("spawn-data")
	tags, err := domain.ParseTags(rawTags)
	if err != nil {
		return domain.SpawnRequest{}, err
	}
	return domain.SpawnRequest{Module: module, Tags: tags, Data: data}, nil
}

func codeArg(cmd *cobra.Command, args []string) (string, error) {
	file, _ := cmd.Flags().GetString("file")
	switch {
	case len(args) > 1 && file != "":
		return "", errors.New("pass code either as an argument or with --file")
	case len(args) > 1:
		return args[1], nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// printAnswer prints the Output text, or the whole answer with --raw. A
// process-level Error fails the command.
func printAnswer(cmd *cobra.Command, raw map[string]any) error {
	if asRaw, _ := cmd.Flags().GetBool("raw"); asRaw {
		if err := printJSON(cmd.OutOrStdout(), raw); err != nil {
			return err
		}
	} else if out := domain.OutputText(raw); out != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	if msg := domain.ResultError(raw); msg != "" {
		return fmt.Errorf("process error: %s", msg)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
