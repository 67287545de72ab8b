//go:build !windows

package lifecycle

import (
	"context"
	"os"
	"sync"
	"syscall"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/kartoza/kartoza-dualcam/internal/camera"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu   sync.Mutex
	sigs []camera.SignalKind
}

func (r *recorder) HandleSignal(_ context.Context, sig camera.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sigs = append(r.sigs, sig.Kind)
}

func TestTranslate(t *testing.T) {
	sig, ok := Translate(syscall.SIGUSR1)
	assert.True(t, ok)
	assert.Equal(t, camera.SignalBackground, sig.Kind)

	sig, ok = Translate(syscall.SIGUSR2)
	assert.True(t, ok)
	assert.Equal(t, camera.SignalForeground, sig.Kind)

	_, ok = Translate(syscall.SIGHUP)
	assert.False(t, ok)
}

func TestRun_DispatchesUntilClosed(t *testing.T) {
	ch := make(chan os.Signal, 3)
	ch <- syscall.SIGUSR1
	ch <- syscall.SIGHUP
	ch <- syscall.SIGUSR2
	close(ch)

	r := &recorder{}
	Run(context.Background(), ch, r, zerolog.Nop())

	assert.Equal(t, []camera.SignalKind{camera.SignalBackground, camera.SignalForeground}, r.sigs)
}

func TestRun_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	Run(ctx, make(chan os.Signal), &recorder{}, zerolog.Nop())
}
