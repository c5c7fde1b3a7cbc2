package main

import (
	"fmt"
	"os"

	"github.com/franz/gym-league/internal/store"
	"github.com/franz/gym-league/internal/util"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "gymbot",
		Short: "Pokemon-style gym league bot backed by a self-healing SQLite store",
		Long: `gymbot keeps a league of gyms, leaders, trainers and badges in SQLite.
On every start the live schema is compared with the declared one and brought
in line: missing tables, columns and indexes are added in place, and tables
with incompatible constraints are rebuilt when --auto-recreate is set.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.SetVerbose(viper.GetBool("verbose"))
			util.SetQuiet(viper.GetBool("quiet"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/gymbot.yaml)")
	rootCmd.PersistentFlags().String(util.KeyDBPath, "./data/gym.db", "league database file")
	rootCmd.PersistentFlags().Bool(util.KeyAutoRecreate, false, "rebuild tables whose constraints differ from the declared schema")
	rootCmd.PersistentFlags().Bool(util.KeyAutoCleanup, false, "drop tables that are not part of the declared schema")
	rootCmd.PersistentFlags().String(util.KeyEventsDir, "", "directory for JSONL schema event logs (off when empty)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	for _, key := range []string{util.KeyDBPath, util.KeyAutoRecreate, util.KeyAutoCleanup, util.KeyEventsDir, "verbose", "quiet"} {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}
}

// envAliases maps config keys to the unprefixed variable names deployments
// already use
var envAliases = map[string]string{
	util.KeyDBPath:       "DB_PATH",
	util.KeyAutoRecreate: "DB_AUTO_RECREATE",
	util.KeyAutoCleanup:  "DB_AUTO_CLEANUP",
	util.KeyWebHost:      "WEB_HOST",
	util.KeyWebPort:      "WEB_PORT",
}

func initConfig() {
	// A missing .env is normal
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("gymbot")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables that match (GYM_DB, GYM_AUTO_RECREATE, ...)
	viper.SetEnvPrefix("GYM")
	viper.AutomaticEnv()
	for key, env := range envAliases {
		viper.BindEnv(key, "GYM_"+envName(key), env)
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if store.IsFatal(err) {
			util.ErrorLog("Database needs manual intervention: %v", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
