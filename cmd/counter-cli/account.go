package main

import (
	"fmt"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/counter"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	ownerStr string
	space    uint64
)

var createAccountCmd = &cobra.Command{
	Use:   "create-account",
	Short: "Provision a counter account",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := counter.ProgramID
		if ownerStr != "" {
			var err error
			if owner, err = core.AddressFromString(ownerStr); err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		key, err := engine.CreateAccount(owner, space)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account created: %s\n", key)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <account>",
	Short: "Show a counter account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := core.AddressFromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid account: %w", err)
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		acc, err := engine.Account(key)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Account: %s\n", acc.Key)
		fmt.Fprintf(out, "Owner:   %s\n", acc.Owner)
		p.Fprintf(out, "Size:    %d bytes\n", len(acc.Data))
		rec, err := counter.Decode(acc.Data)
		if err != nil {
			fmt.Fprintf(out, "Count:   <%v>\n", err)
			return nil
		}
		p.Fprintf(out, "Count:   %d\n", rec.Count)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts owned by a program",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := counter.ProgramID
		if ownerStr != "" {
			var err error
			if owner, err = core.AddressFromString(ownerStr); err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		accounts, err := engine.GetContext().ListAccounts(owner)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			count := "-"
			if rec, err := counter.Decode(acc.Data); err == nil {
				count = fmt.Sprint(rec.Count)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", acc.Key, count)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&ownerStr, "owner", "o", "", "Owner program (default: counter program)")
	createAccountCmd.Flags().StringVarP(&ownerStr, "owner", "o", "", "Owner program (default: counter program)")
	createAccountCmd.Flags().Uint64VarP(&space, "space", "s", counter.RecordSize, "Account size in bytes")
}
