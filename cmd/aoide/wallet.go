package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/aoide/pkg/wallet"
)

const walletBits = 4096

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Create and inspect signing wallets",
}

var walletNewCmd = &cobra.Command{
	Use:   "new <file>",
	Short: "Generate an RSA wallet and save it as a JWK",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(args[0]); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", args[0])
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		w, err := wallet.Generate(walletBits)
		if err != nil {
			return err
		}
		if err := w.Save(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), w.Address())
		return nil
	},
}

var walletAddressCmd = &cobra.Command{
	Use:   "address [file]",
	Short: "Print the address of a wallet (default: the configured one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		} else {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path = cfg.Wallet
		}
		if path == "" {
			return errors.New("no wallet configured")
		}

		w, err := wallet.Load(path)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), w.Address())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletNewCmd, walletAddressCmd)
	walletNewCmd.Flags().Bool("force", false, "Overwrite an existing file")
}
