package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-dualcam/internal/capture"
	"github.com/kartoza/kartoza-dualcam/internal/capture/testpattern"
	"github.com/kartoza/kartoza-dualcam/internal/webcam"
)

var hostDevices bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices",
	Long: `List the devices a camera session captures from.

Sessions record from the built-in test pattern cameras; --host lists the
V4L2 cameras attached to this machine instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if hostDevices {
			devices, err := webcam.Devices()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(devices)
			}
			printDevices(devices)
			return nil
		}

		hw := testpattern.New(testpattern.Options{
			Width:    cfg.Width,
			Height:   cfg.Height,
			FPS:      cfg.FrameRate,
			MultiCam: cfg.MultiCam,
		})
		devices := hw.Devices()

		if jsonOutput {
			return printJSON(devices)
		}

		printDevices(devices)
		if hw.MultiCamSupported() {
			fmt.Println("Simultaneous front and back capture is supported.")
		}
		return nil
	},
}

func printDevices(devices []capture.Device) {
	fmt.Println("Available devices:")
	fmt.Println()
	for _, d := range devices {
		fmt.Printf("  %s\n", d.Name)
		fmt.Printf("    ID:       %s\n", d.ID)
		fmt.Printf("    Kind:     %s\n", d.Kind)
		if d.Kind == capture.DeviceCamera {
			fmt.Printf("    Position: %s\n", d.Position)
			fmt.Printf("    Zoom:     %.0fx - %.0fx\n", d.MinZoom, d.MaxZoom)
			if d.HasTorch {
				fmt.Println("    Torch:    yes")
			}
		}
		fmt.Println()
	}
}

func init() {
	devicesCmd.Flags().BoolVar(&hostDevices, "host", false, "List the cameras attached to this machine")
	rootCmd.AddCommand(devicesCmd)
}
