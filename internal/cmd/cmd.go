package cmd

import (
	"log/slog"
	"os"

	"github.com/automolid/automolid/internal/cmd/check"
	"github.com/automolid/automolid/internal/cmd/monitor"
	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "automolid",
		Short: "Automatic motion lights for Home Assistant",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			charmer.SetJSONLogger(cmd, viper.GetBool("debug"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))

	RootCmd.AddCommand(&monitor.Cmd, &check.Cmd)
}

var args = charmer.Arguments{
	"debug":               charmer.Argument{Default: false, Help: "Log debug messages"},
	"homeassistant.url":   charmer.Argument{Default: "http://homeassistant.local:8123", Help: "Home Assistant URL"},
	"homeassistant.token": charmer.Argument{Default: "", Help: "Home Assistant long-lived access token"},
	"location.latitude":   charmer.Argument{Default: 0.0, Help: "Latitude, for sunrise/sunset daytimes"},
	"location.longitude":  charmer.Argument{Default: 0.0, Help: "Longitude, for sunrise/sunset daytimes"},
	"exporter.addr":       charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"health.addr":         charmer.Argument{Default: ":8080", Help: "Address of /health endpoint"},
	"slack.token":         charmer.Argument{Default: "", Help: "Slack token"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/automolid/")
		viper.AddConfigPath("$HOME/.automolid")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("AUTOMOLID")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		slog.Error("failed to read config file", "err", err)
		os.Exit(1)
	}
}
