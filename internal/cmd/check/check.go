package check

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/automolid/automolid/internal/configuration"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Cmd validates the rooms file and prints the resolved configuration, so
// mistakes surface before the daemon restarts with them.
var Cmd = cobra.Command{
	Use:   "check",
	Short: "Validate the rooms file and print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(filepath.Dir(viper.ConfigFileUsed()), "rooms.yaml")
		if len(args) > 0 {
			path = args[0]
		}

		configs, err := configuration.LoadFile(path)
		if err != nil {
			return err
		}

		for _, cfg := range configs {
			cmd.Printf("room %q\n", cfg.Name)
			cmd.Printf("  lights: %s\n", strings.Join(cfg.Lights, ", "))
			sensors := make([]string, 0, len(cfg.MotionSensors))
			for _, s := range cfg.MotionSensors {
				sensors = append(sensors, s.Entity)
			}
			cmd.Printf("  motion: %s\n", strings.Join(sensors, ", "))
			cmd.Printf("  delay: %s (outside events: %s)\n", cfg.Delay, cfg.DelayOutsideEvents)
			for _, dt := range cfg.Daytimes {
				line := fmt.Sprintf("  daytime %q: light %s", dt.Name, dt.Light)
				if dt.Delay > 0 {
					line += fmt.Sprintf(", delay %s", dt.Delay)
				}
				cmd.Println(line)
			}
		}
		cmd.Printf("%d room(s) OK\n", len(configs))
		return nil
	},
}
