package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "pulsegated",
	Short:   "Consent-gated remote control core",
	Version: version + " (" + buildDate + ")",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default pulsegate.yaml)")

	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("dsn", "", "PostgreSQL DSN")
	serveCmd.Flags().String("jwt-key", "", "HS256 signing key shared with the host")
	serveCmd.Flags().String("master-key", "", "credential encryption master key")
	serveCmd.Flags().Duration("scheduler-interval", 0, "reminder poll interval (0 for default)")
	serveCmd.Flags().Int("audit-retention-days", 90, "days of audit history to keep, 0 disables pruning")

	_ = viper.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("db.dsn", serveCmd.Flags().Lookup("dsn"))
	_ = viper.BindPFlag("auth.jwt_key", serveCmd.Flags().Lookup("jwt-key"))
	_ = viper.BindPFlag("crypto.master_key", serveCmd.Flags().Lookup("master-key"))
	_ = viper.BindPFlag("scheduler.interval", serveCmd.Flags().Lookup("scheduler-interval"))
	_ = viper.BindPFlag("audit.retention_days", serveCmd.Flags().Lookup("audit-retention-days"))

	rootCmd.AddCommand(serveCmd, genkeyCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pulsegate")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/pulsegate")
	}

	viper.SetEnvPrefix("PULSEGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file is optional; env and flags cover everything.
	_ = viper.ReadInConfig()
}
