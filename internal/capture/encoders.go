package capture

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kartoza/kartoza-dualcam/internal/encoder"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// mediaEncoder is the part of *encoder.Encoder the session drives.
type mediaEncoder interface {
	AppendVideo(s models.Sample)
	AppendAudio(s models.Sample)
	RecordedDuration() models.Time
	Stop(ctx context.Context) (encoder.Output, error)
}

// encoderSet is the encoders of the in-flight recording: exactly one of
// noEncoders, singleEncoder or dualEncoders.
type encoderSet interface {
	// forOutput returns the encoder fed by a video output, or nil.
	forOutput(out models.Output) mediaEncoder
	// all returns every encoder in output order.
	all() []mediaEncoder
}

type noEncoders struct{}

type singleEncoder struct {
	primary mediaEncoder
}

type dualEncoders struct {
	primary   mediaEncoder
	secondary mediaEncoder
}

func (noEncoders) forOutput(models.Output) mediaEncoder { return nil }
func (noEncoders) all() []mediaEncoder                  { return nil }

func (s singleEncoder) forOutput(out models.Output) mediaEncoder {
	if out == models.OutputPrimary {
		return s.primary
	}
	return nil
}

func (s singleEncoder) all() []mediaEncoder { return []mediaEncoder{s.primary} }

func (d dualEncoders) forOutput(out models.Output) mediaEncoder {
	switch out {
	case models.OutputPrimary:
		return d.primary
	case models.OutputSecondary:
		return d.secondary
	default:
		return nil
	}
}

func (d dualEncoders) all() []mediaEncoder {
	return []mediaEncoder{d.primary, d.secondary}
}

// finalized is the joined result of stopping an encoder set.
type finalized struct {
	primary      encoder.Output
	primaryErr   error
	secondary    encoder.Output
	secondaryErr error
	dual         bool
}

// stopEncoders stops every encoder of set concurrently and returns once all
// of them have resolved. Completion order between outputs is irrelevant.
func stopEncoders(ctx context.Context, set encoderSet) finalized {
	var res finalized

	switch set := set.(type) {
	case noEncoders:
		res.primaryErr = encoder.ErrNotWriting

	case singleEncoder:
		res.primary, res.primaryErr = set.primary.Stop(ctx)

	case dualEncoders:
		res.dual = true
		var g errgroup.Group
		g.Go(func() error {
			res.primary, res.primaryErr = set.primary.Stop(ctx)
			return nil
		})
		g.Go(func() error {
			res.secondary, res.secondaryErr = set.secondary.Stop(ctx)
			return nil
		})
		_ = g.Wait()
	}

	return res
}
