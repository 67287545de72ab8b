package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kartoza/kartoza-dualcam/internal/camera"
	xlog "github.com/kartoza/kartoza-dualcam/internal/log"
	"github.com/kartoza/kartoza-dualcam/internal/models"
	"github.com/kartoza/kartoza-dualcam/internal/notify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a headless camera session driven by the control API",
	Long: `Start streaming and serve the control API until the session is finished.

Drive the session from another terminal with the start, stop, toggle, flip,
mode and done subcommands. SIGINT and SIGTERM finish the session keeping the
clips; SIGUSR1 and SIGUSR2 send it to the background and back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := apiAddr()
		if addr == "" {
			return fmt.Errorf("serve needs a control API address")
		}

		finished := make(chan camera.Result, 1)
		rt, err := newRuntime(cfg, func(o *camera.Options) {
			o.OnComplete = func(res camera.Result) { finished <- res }
			o.OnClip = func(rec models.Recording, reached bool) {
				clog := xlog.WithComponent("cli")
				clog.Info().
					Str(xlog.FieldRecordingID, rec.ID).
					Bool("budget_reached", reached).
					Msg("clip ready")
			}
			o.OnError = func(kind camera.ErrorKind, err error) {
				if cfg.Notifications {
					_ = notify.CameraError(string(kind), err)
				}
			}
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rt.serveAPI(ctx, addr)

		if err := rt.orch.StartStreaming(ctx); err != nil {
			rt.logger.Error().Err(err).Msg("failed to start streaming, waiting for retry")
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		var res camera.Result
		select {
		case res = <-finished:
		case s := <-sigChan:
			rt.logger.Info().Str(xlog.FieldSignal, s.String()).Msg("finishing session")
			doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
			res, err = rt.orch.Done(doneCtx)
			doneCancel()
			if err != nil {
				return err
			}
		}

		cancel()
		if err := rt.close(context.Background()); err != nil {
			rt.logger.Warn().Err(err).Msg("capture session did not close cleanly")
		}

		dir, err := rt.export(res)
		if res.Err != nil {
			fmt.Printf("Session ended: %v\n", res.Err)
			return nil
		}
		if dir != "" {
			fmt.Printf("Saved %d clip(s) to %s\n", len(res.Recordings), dir)
			if cfg.Notifications {
				_ = notify.SessionComplete(len(res.Recordings), dir)
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
