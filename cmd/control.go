package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-dualcam/internal/api"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

var (
	jsonOutput   bool
	zoomCommit   bool
	cancelReason string
)

func newClient() (*api.Client, error) {
	addr := apiAddr()
	if addr == "" {
		return nil, fmt.Errorf("control API is disabled")
	}
	return api.NewClient(addr), nil
}

// controlCmd builds a subcommand that sends one request and prints the resulting status.
func controlCmd(use, short string, call func(context.Context, *api.Client) (models.CameraStatus, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			st, err := call(ctx, c)
			if err != nil {
				return err
			}
			return printStatus(st)
		},
	}
}

var statusCmd = controlCmd("status", "Show the camera status of a running session",
	func(ctx context.Context, c *api.Client) (models.CameraStatus, error) { return c.Status(ctx) })

var startCmd = controlCmd("start", "Start recording (after the countdown)",
	func(ctx context.Context, c *api.Client) (models.CameraStatus, error) { return c.StartRecording(ctx) })

var stopCmd = controlCmd("stop", "Stop recording or cancel the countdown",
	func(ctx context.Context, c *api.Client) (models.CameraStatus, error) { return c.StopRecording(ctx) })

var toggleCmd = controlCmd("toggle", "Toggle recording on/off",
	func(ctx context.Context, c *api.Client) (models.CameraStatus, error) { return c.ToggleRecording(ctx) })

var flipCmd = controlCmd("flip", "Swap the front and back cameras",
	func(ctx context.Context, c *api.Client) (models.CameraStatus, error) { return c.FlipCamera(ctx) })

var retryCmd = controlCmd("retry", "Retry after a camera error",
	func(ctx context.Context, c *api.Client) (models.CameraStatus, error) { return c.Retry(ctx) })

var modeCmd = &cobra.Command{
	Use:       "mode single|dual",
	Short:     "Switch between single and dual camera mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(models.ModeSingle), string(models.ModeDual)},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := models.ParseMode(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		st, err := c.SetCameraMode(cmd.Context(), mode)
		if err != nil {
			return err
		}
		return printStatus(st)
	},
}

var zoomCmd = &cobra.Command{
	Use:   "zoom FACTOR",
	Short: "Zoom the primary camera relative to the committed zoom",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid zoom factor %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		st, err := c.Zoom(cmd.Context(), factor, zoomCommit)
		if err != nil {
			return err
		}
		return printStatus(st)
	},
}

var flashCmd = &cobra.Command{
	Use:   "flash",
	Short: "Toggle the torch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		on, err := c.ToggleFlash(cmd.Context())
		if err != nil {
			return err
		}
		if on {
			fmt.Println("Flash: on")
		} else {
			fmt.Println("Flash: off")
		}
		return nil
	},
}

var lifecycleCmd = &cobra.Command{
	Use:       "lifecycle background|foreground|interruption-began|interruption-ended",
	Short:     "Send a host lifecycle signal to the session",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"background", "foreground", "interruption-began", "interruption-ended"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		st, err := c.Lifecycle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printStatus(st)
	},
}

var clipsCmd = &cobra.Command{
	Use:   "clips",
	Short: "List the finished clips of a running session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		clips, err := c.Clips(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(clips)
		}
		printClips(clips)
		return nil
	},
}

var deleteLastCmd = &cobra.Command{
	Use:   "delete-last",
	Short: "Delete the most recent clip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.DeleteLastRecording(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Deleted the last clip.")
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done",
	Short: "Finish the session keeping every clip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Done(cmd.Context())
		if err != nil {
			return err
		}
		return printFinish(res)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Finish the session discarding every clip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.Cancel(cmd.Context(), cancelReason)
		if err != nil {
			return err
		}
		return printFinish(res)
	},
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printStatus(st models.CameraStatus) error {
	if jsonOutput {
		return printJSON(st)
	}
	fmt.Printf("State:     %s\n", st.State)
	if st.ErrorKind != "" {
		fmt.Printf("Error:     %s (%s)\n", st.Error, st.ErrorKind)
	}
	if st.CountdownRemaining > 0 {
		fmt.Printf("Countdown: %d\n", st.CountdownRemaining)
	}
	fmt.Printf("Camera:    %s, %s", st.Effective.Mode, st.Effective.Facing)
	if st.Requested.Mode != st.Effective.Mode {
		fmt.Printf(" (requested %s)", st.Requested.Mode)
	}
	fmt.Println()
	fmt.Printf("Zoom:      %.2fx\n", st.ZoomFactor)
	fmt.Printf("Clips:     %d (%.1fs)\n", len(st.Clips), st.TotalSeconds)
	if st.Unlimited {
		fmt.Println("Remaining: unlimited")
	} else {
		fmt.Printf("Remaining: %.1fs\n", st.RemainingSeconds)
	}
	return nil
}

func printClips(clips []models.Recording) {
	if len(clips) == 0 {
		fmt.Println("No clips.")
		return
	}
	for i, c := range clips {
		fmt.Printf("%2d. %-36s %6.1fs\n", i+1, c.ID, c.Duration.Seconds())
		for _, v := range c.Videos {
			fmt.Printf("      %s\n", v.Path)
		}
	}
}

func printFinish(res api.FinishResponse) error {
	if jsonOutput {
		return printJSON(res)
	}
	if res.Error != "" {
		fmt.Printf("Session ended: %s\n", res.Error)
		return nil
	}
	fmt.Printf("Session finished with %d clip(s).\n", len(res.Recordings))
	printClips(res.Recordings)
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	zoomCmd.Flags().BoolVar(&zoomCommit, "commit", true, "Commit the zoom instead of applying it provisionally")
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "Reason reported to the session")

	rootCmd.AddCommand(statusCmd, startCmd, stopCmd, toggleCmd, flipCmd, retryCmd,
		modeCmd, zoomCmd, flashCmd, lifecycleCmd, clipsCmd, deleteLastCmd, doneCmd, cancelCmd)
}
