package main

import (
	"fmt"
	"time"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/counter"
	"github.com/govm-net/counter/types"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	times int
	limit int
)

var incrementCmd = &cobra.Command{
	Use:   "increment <account>",
	Short: "Run increment instructions against a counter account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := core.AddressFromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid account: %w", err)
		}
		if times < 1 {
			return fmt.Errorf("--times must be at least 1")
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		ix := types.Instruction{
			ProgramID: counter.ProgramID,
			Accounts:  []types.AccountMeta{{Key: key, IsWritable: true}},
		}
		batch := lo.Times(times, func(int) types.Instruction { return ix })
		if err := engine.ExecuteBatch(cmd.Context(), batch); err != nil {
			return fmt.Errorf("failed to execute increment: %w", err)
		}

		acc, err := engine.Account(key)
		if err != nil {
			return err
		}
		rec, err := counter.Decode(acc.Data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Count: %d\n", rec.Count)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently executed instructions",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		recs, err := engine.GetContext().Instructions(limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, rec := range recs {
			status := "ok"
			if !rec.Success {
				status = "failed: " + rec.Error
			}
			accounts := lo.Map(rec.Accounts, func(a core.Address, _ int) string { return a.String() })
			fmt.Fprintf(out, "%s %s %s %v %s\n",
				rec.ExecutedAt.Format(time.RFC3339), rec.Hash, rec.ProgramID, accounts, status)
		}
		return nil
	},
}

func init() {
	incrementCmd.Flags().IntVarP(&times, "times", "n", 1, "Number of increments to run")
	historyCmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of records to show, 0 for all")
}
