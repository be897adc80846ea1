package main

import (
	"fmt"
	"log/slog"
	"os"

	acctctx "github.com/govm-net/counter/context"
	_ "github.com/govm-net/counter/context/db"
	_ "github.com/govm-net/counter/context/memory"
	"github.com/govm-net/counter/counter"
	"github.com/govm-net/counter/vm"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        cliConfig
)

var rootCmd = &cobra.Command{
	Use:   "counter-cli",
	Short: "Counter program command line tool",
	Long: `Command line tool for provisioning counter accounts and running
increment instructions against a local account store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "counter.toml", "Config file")
	rootCmd.AddCommand(createAccountCmd)
	rootCmd.AddCommand(incrementCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
}

// newEngine opens the configured account store with the counter program registered
func newEngine() (*vm.Engine, error) {
	engine, err := vm.NewEngine(&vm.Config{
		ContextType:   cfg.ContextType,
		ContextParams: map[string]any{acctctx.ParamDBPath: cfg.DBPath},
		Workers:       cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create VM engine: %w", err)
	}
	if err := engine.RegisterProgram(counter.ProgramID, counter.Factory(counter.WithOverflowPolicy(cfg.Overflow))); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
