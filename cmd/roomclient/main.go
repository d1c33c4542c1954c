package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"meandu-go/internal/config"
	"meandu-go/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "roomclient",
	Short: "Terminal client for me&u chat rooms",
	Long: `roomclient joins a me&u room from the terminal: it loads the room's
history, keeps a live connection to the relay and sends what you type.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

var (
	flagConfig string
	flagRoom   string

	cfg config.Config
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", os.Getenv("MEANDU_CONFIG"), "config file (default ./config/config.yaml or ./config.yaml)")
	flags.StringVar(&flagRoom, "room", "", "room id")

	rootCmd.AddCommand(chatCmd, roomCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadConfig(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	return nil
}

func requireRoom() error {
	if flagRoom == "" {
		return fmt.Errorf("--room is required")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute roomclient")
	}
}
