package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/kartoza/kartoza-dualcam/internal/api"
	"github.com/kartoza/kartoza-dualcam/internal/camera"
	"github.com/kartoza/kartoza-dualcam/internal/capture"
	"github.com/kartoza/kartoza-dualcam/internal/capture/testpattern"
	"github.com/kartoza/kartoza-dualcam/internal/config"
	"github.com/kartoza/kartoza-dualcam/internal/deps"
	"github.com/kartoza/kartoza-dualcam/internal/lifecycle"
	xlog "github.com/kartoza/kartoza-dualcam/internal/log"
	"github.com/kartoza/kartoza-dualcam/internal/preview"
	"github.com/kartoza/kartoza-dualcam/internal/recordings"
)

// sessionRuntime wires one camera session: hardware, capture session,
// preview renderer and orchestrator.
type sessionRuntime struct {
	cfg      *config.Config
	hw       *testpattern.Hardware
	session  *capture.Session
	renderer *preview.Renderer
	orch     *camera.Orchestrator
	logger   zerolog.Logger
}

func newRuntime(cfg *config.Config, configure func(*camera.Options)) (*sessionRuntime, error) {
	if missing := deps.MissingRequired(cfg.EncoderFormat(), cfg.FFmpegPath); len(missing) > 0 {
		return nil, errors.New(deps.FormatMissing(missing))
	}
	if err := config.EnsureDirectories(cfg); err != nil {
		return nil, err
	}

	hw := testpattern.New(testpattern.Options{
		Width:    cfg.Width,
		Height:   cfg.Height,
		FPS:      cfg.FrameRate,
		MultiCam: cfg.MultiCam,
		Logger:   xlog.WithComponent(xlog.ComponentHardware),
	})
	session := capture.NewSession(capture.Config{
		Hardware:   hw,
		ScratchDir: cfg.ScratchDir,
		Format:     cfg.EncoderFormat(),
		Encoder:    cfg.EncoderConfig(),
		Layout:     cfg.Layout,
		Logger:     xlog.WithComponent(xlog.ComponentSession),
	})
	renderer := preview.New()

	opts := camera.Options{
		Session:        session,
		NewRenderer:    func() camera.Renderer { return renderer },
		Budget:         cfg.Budget(),
		AllowExceeding: cfg.AllowExceeding,
		Countdown:      cfg.Countdown(),
		Topology:       cfg.Topology(),
		Logger:         xlog.WithComponent(xlog.ComponentCamera),
	}
	if configure != nil {
		configure(&opts)
	}

	return &sessionRuntime{
		cfg:      cfg,
		hw:       hw,
		session:  session,
		renderer: renderer,
		orch:     camera.New(opts),
		logger:   xlog.WithComponent("cli"),
	}, nil
}

// serveAPI runs the control API and the lifecycle signal watcher until ctx is done.
func (r *sessionRuntime) serveAPI(ctx context.Context, addr string) {
	go lifecycle.Watch(ctx, r.orch, xlog.WithComponent("lifecycle"))
	if addr == "" {
		return
	}
	srv := api.NewServer(r.orch, xlog.WithComponent(xlog.ComponentAPI))
	go func() {
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			r.logger.Error().Err(err).Str("addr", addr).Msg("control API stopped")
		}
	}()
}

func (r *sessionRuntime) close(ctx context.Context) error {
	return r.session.Close(ctx)
}

// export moves the clips of a finished session into a numbered directory
// under the output directory and writes its manifest. Cancelled sessions have
// nothing to export.
func (r *sessionRuntime) export(res camera.Result) (string, error) {
	if res.Err != nil || len(res.Recordings) == 0 {
		return "", res.Err
	}

	n, err := config.GetNextSessionNumber()
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to persist session counter")
	}
	dir := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("session-%03d", n))

	recs, exportErr := recordings.Export(res.Recordings, dir)
	m := recordings.NewManager(r.cfg.Budget(), r.cfg.AllowExceeding, r.logger)
	for _, rec := range recs {
		m.Add(rec)
	}
	manifestErr := m.WriteManifest(filepath.Join(dir, "manifest.json"))

	r.logger.Info().Str(xlog.FieldPath, dir).Int("clips", len(recs)).Msg("session exported")
	return dir, errors.Join(exportErr, manifestErr)
}
