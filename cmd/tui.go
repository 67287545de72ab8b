package cmd

import (
	"context"
	"fmt"

	"github.com/kartoza/kartoza-dualcam/internal/camera"
	"github.com/kartoza/kartoza-dualcam/internal/config"
	"github.com/kartoza/kartoza-dualcam/internal/deps"
	"github.com/kartoza/kartoza-dualcam/internal/preview"
	"github.com/kartoza/kartoza-dualcam/internal/tui"
)

func runTUI(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	bridge := tui.NewBridge()
	rt, err := newRuntime(cfg, func(o *camera.Options) {
		o.OnClip = bridge.OnClip
		o.OnCountdown = bridge.OnCountdown
		o.OnError = bridge.OnError
		o.OnComplete = bridge.OnComplete
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rt.serveAPI(ctx, apiAddr())

	res, err := tui.Run(tui.Options{
		Camera:        rt.orch,
		Frames:        rt.renderer,
		Bridge:        bridge,
		Kitty:         useKitty(cfg.PreviewProtocol),
		Beeps:         cfg.Beeps,
		Notifications: cfg.Notifications && deps.Available("notify-send"),
		OutputDir:     cfg.OutputDir,
	})
	cancel()
	if closeErr := rt.close(context.Background()); closeErr != nil {
		rt.logger.Warn().Err(closeErr).Msg("capture session did not close cleanly")
	}
	if err != nil {
		return err
	}

	dir, err := rt.export(res)
	if res.Err != nil {
		fmt.Println("Session discarded.")
		return nil
	}
	if dir != "" {
		fmt.Printf("Saved %d clip(s) to %s\n", len(res.Recordings), dir)
	}
	return err
}

func useKitty(protocol string) bool {
	switch protocol {
	case config.PreviewKitty:
		return true
	case config.PreviewASCII:
		return false
	default:
		return preview.KittySupported()
	}
}
