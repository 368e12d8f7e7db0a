package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msto63/personachat/internal/voice/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Mikrofone anzeigen",
	Long: `Listet die Eingabegeräte von PortAudio auf. Der Name kann in der
Config unter [audio] input_device eingetragen werden.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := device.ListInputDevices()
		if err != nil {
			return fmt.Errorf("Geräte nicht lesbar: %w", err)
		}

		fmt.Println("Eingabegeräte")
		fmt.Println("=============")
		fmt.Println()
		if len(devices) == 0 {
			fmt.Println("Keine Mikrofone gefunden.")
			return nil
		}
		for _, d := range devices {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("  %s %-40s %d Kanäle, %.0f Hz\n", marker, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		}
		fmt.Println()
		fmt.Println("* = Standard")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
