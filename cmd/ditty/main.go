// Command ditty taps the audio of a running application and serves its live
// spectrum over HTTP and websocket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dittyapp/ditty/internal/config"
	"github.com/dittyapp/ditty/internal/log"
)

var (
	version = "dev"
	cfgFile string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

// flagKeys binds command line flags to config keys. Flags only override the
// config when set explicitly.
var flagKeys = map[string]string{
	"addr":      "web.addr",
	"log-level": "log.level",
	"log-file":  "log.file",
	"backend":   "engine.source.backend",
	"target":    "engine.source.target",
	"device":    "engine.source.device",
	"file":      "engine.source.file",
	"bars":      "web.bars",
	"scale":     "engine.spectrum.scale",
	"retry":     "engine.connector.retry_interval",
}

var rootCmd = &cobra.Command{
	Use:           "ditty",
	Short:         "Live audio spectrum for any application",
	Long:          `ditty taps the audio output of a running application, turns it into a 64-band spectrum and serves it to visualizers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd.Flags())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ditty %s\n", version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Encode(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./ditty.yaml or the user config dir)")
	pf.String("addr", "", "server address to listen on or connect to")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
}

func loadConfig(flags *pflag.FlagSet) error {
	loader, err := config.NewLoader()
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := loader.Viper().BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err = loader.Load(cfgFile)
	if err != nil {
		return err
	}

	log.Init(cfg.Log)
	if used := loader.Used(); used != "" {
		log.Debug("config loaded", "file", used)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ditty:", err)
		os.Exit(1)
	}
}
