package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/aoide/internal/presentation/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the node, operator and wallet in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		st := client.Status(cmd.Context())
		if asJSON {
			return printJSON(cmd.OutOrStdout(), st)
		}

		out := cmd.OutOrStdout()
		operator := st.Operator
		ok := st.OperatorError == ""
		if !ok {
			operator = st.OperatorError
		}
		if tui.IsTerminal(os.Stdout) {
			operator = tui.Badge(operator, ok)
		}
		fmt.Fprintf(out, "endpoint  %s\n", st.Endpoint)
		fmt.Fprintf(out, "operator  %s\n", operator)
		if st.Wallet != "" {
			fmt.Fprintf(out, "wallet    %s\n", st.Wallet)
		}
		if st.Gateway != "" {
			fmt.Fprintf(out, "gateway   %s\n", st.Gateway)
		}
		fmt.Fprintf(out, "version   %s\n", st.Version)
		if !ok {
			return errors.New("node unreachable")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "Print as JSON")
}
