package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-dualcam/internal/beep"
	"github.com/kartoza/kartoza-dualcam/internal/camera"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

var (
	recordDuration time.Duration
	recordMode     string
	recordFacing   string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one clip without the interactive screen",
	Long: `Stream, count down, record a single clip and save it.

The take stops after --duration or when the recording budget runs out,
whichever comes first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordMode != "" {
			if _, err := models.ParseMode(recordMode); err != nil {
				return err
			}
			cfg.DefaultMode = recordMode
		}
		if recordFacing != "" {
			if _, err := models.ParseFacing(recordFacing); err != nil {
				return err
			}
			cfg.DefaultFacing = recordFacing
		}

		clips := make(chan models.Recording, 1)
		rt, err := newRuntime(cfg, func(o *camera.Options) {
			o.OnClip = func(rec models.Recording, _ bool) { clips <- rec }
			o.OnCountdown = func(remaining int) {
				fmt.Printf("%d...\n", remaining)
				if cfg.Beeps {
					go beep.Play(remaining)
				}
			}
		})
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := rt.orch.StartStreaming(ctx); err != nil {
			_ = rt.close(ctx)
			return err
		}

		rt.orch.StartRecording()
		if rt.orch.State() == models.StateReady {
			_ = rt.close(ctx)
			return fmt.Errorf("no recording budget left")
		}

		wait := recordDuration
		if c := cfg.Countdown(); c > 0 {
			wait += c
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
			fmt.Println("Stopping...")
			rt.orch.StopRecording()
			select {
			case <-clips:
			case <-time.After(10 * time.Second):
				rt.logger.Warn().Msg("no clip produced")
			}
		case rec := <-clips:
			fmt.Printf("Budget reached after %.1fs\n", rec.Duration.Seconds())
		}

		res, err := rt.orch.Done(ctx)
		if err != nil {
			return err
		}
		if err := rt.close(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("capture session did not close cleanly")
		}

		dir, err := rt.export(res)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %d clip(s) to %s\n", len(res.Recordings), dir)
		return nil
	},
}

func init() {
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 5*time.Second, "Clip length")
	recordCmd.Flags().StringVarP(&recordMode, "mode", "m", "", "Camera mode: single or dual (default from config)")
	recordCmd.Flags().StringVarP(&recordFacing, "facing", "f", "", "Primary camera: back or front (default from config)")
	rootCmd.AddCommand(recordCmd)
}
