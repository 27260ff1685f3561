// spaicer — инструмент командной строки для pipeline spaicer_demo_dag.
//
// Использование:
//
//	spaicer [--api-url URL] [--json] <command> [subcommand] [flags]
//
// Команды:
//
//	run       Выполнить pipeline один раз локально
//	graph     Показать шаги и рёбра pipeline
//	runs      История runs и ручной запуск через API
//	schedule  Расписание через API
//	watch     События из RabbitMQ
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shaiso/spaicer/internal/cli"
	"github.com/shaiso/spaicer/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	// .env влияет на значения флагов по умолчанию
	_ = godotenv.Load()

	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "spaicer",
		Short:         "spaicer CLI — fetch, process and forward sensor data",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultAPIURL := os.Getenv("SPAICER_API_URL")
	if defaultAPIURL == "" {
		defaultAPIURL = config.DefaultAPIURL
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultAPIURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(outputFn),
		cli.NewGraphCmd(clientFn, outputFn),
		cli.NewRunsCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewWatchCmd(outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
