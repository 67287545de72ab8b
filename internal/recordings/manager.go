// Package recordings keeps the ordered list of finished clips of a camera
// session and its duration budget.
package recordings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xlog "github.com/kartoza/kartoza-dualcam/internal/log"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// ErrNothingToDelete is returned when deleting from an empty clip list.
var ErrNothingToDelete = errors.New("nothing to delete")

// Unlimited is the remaining duration when exceeding the maximum is allowed.
const Unlimited = time.Duration(math.MaxInt64)

// Manager is the ordered clip list. A clip's backing files share its lifetime:
// removing a clip deletes them.
//
// Manager is not safe for concurrent use; its owner serializes access.
type Manager struct {
	clips          []models.Recording
	maxTotal       time.Duration
	allowExceeding bool
	logger         zerolog.Logger
}

// NewManager creates an empty manager with the given budget.
func NewManager(maxTotal time.Duration, allowExceeding bool, logger zerolog.Logger) *Manager {
	return &Manager{
		maxTotal:       maxTotal,
		allowExceeding: allowExceeding,
		logger:         logger,
	}
}

// Add appends a finished clip.
func (m *Manager) Add(rec models.Recording) {
	m.clips = append(m.clips, rec)
	m.logger.Debug().
		Str(xlog.FieldRecordingID, rec.ID).
		Float64(xlog.FieldDuration, rec.Duration.Seconds()).
		Int("clips", len(m.clips)).
		Msg("clip added")
}

// Clips returns a copy of the clip list in recording order.
func (m *Manager) Clips() []models.Recording {
	return append([]models.Recording(nil), m.clips...)
}

// Len returns the number of clips.
func (m *Manager) Len() int { return len(m.clips) }

// MaxTotalDuration is the configured budget.
func (m *Manager) MaxTotalDuration() time.Duration { return m.maxTotal }

// AllowsExceeding reports whether the budget is ignored.
func (m *Manager) AllowsExceeding() bool { return m.allowExceeding }

// TotalDuration is the sum of every clip's duration.
func (m *Manager) TotalDuration() models.Time {
	total := models.Zero
	for _, c := range m.clips {
		total = total.Add(c.Duration)
	}
	return total
}

// RemainingDuration is what may still be recorded, or Unlimited.
func (m *Manager) RemainingDuration() time.Duration {
	if m.allowExceeding {
		return Unlimited
	}
	remaining := m.maxTotal - m.TotalDuration().Duration()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasReachedMax reports whether the budget is used up.
func (m *Manager) HasReachedMax() bool {
	return !m.allowExceeding && m.TotalDuration().Duration() >= m.maxTotal
}

// DeleteLastRecording removes the most recent clip and its files. When a file
// cannot be removed the clip stays in the list.
func (m *Manager) DeleteLastRecording() error {
	if len(m.clips) == 0 {
		return ErrNothingToDelete
	}
	last := m.clips[len(m.clips)-1]
	if err := DeleteFiles(last); err != nil {
		return fmt.Errorf("failed to delete recording %s: %w", last.ID, err)
	}
	m.clips = m.clips[:len(m.clips)-1]
	m.logger.Info().Str(xlog.FieldRecordingID, last.ID).Msg("recording deleted")
	return nil
}

// DeleteAll removes every clip and its files. Clips whose files could not be
// removed are kept.
func (m *Manager) DeleteAll() error {
	var (
		kept []models.Recording
		errs []error
	)
	for _, c := range m.clips {
		if err := DeleteFiles(c); err != nil {
			kept = append(kept, c)
			errs = append(errs, fmt.Errorf("failed to delete recording %s: %w", c.ID, err))
		}
	}
	removed := len(m.clips) - len(kept)
	m.clips = kept
	if removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("recordings deleted")
	}
	return errors.Join(errs...)
}

// DeleteFiles removes the backing files of rec. Missing files are not an error.
func DeleteFiles(rec models.Recording) error {
	var errs []error
	for _, p := range rec.Paths() {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Manifest is the exported description of a clip list.
type Manifest struct {
	Clips            []models.Recording `json:"clips"`
	TotalSeconds     float64            `json:"total_seconds"`
	RemainingSeconds float64            `json:"remaining_seconds"`
	Unlimited        bool               `json:"unlimited,omitempty"`
	HasReachedMax    bool               `json:"has_reached_max"`
}

// Manifest describes the current clip list.
func (m *Manager) Manifest() Manifest {
	man := Manifest{
		Clips:         m.Clips(),
		TotalSeconds:  m.TotalDuration().Seconds(),
		HasReachedMax: m.HasReachedMax(),
	}
	if man.Clips == nil {
		man.Clips = []models.Recording{}
	}
	if m.allowExceeding {
		man.Unlimited = true
	} else {
		man.RemainingSeconds = m.RemainingDuration().Seconds()
	}
	return man
}

// WriteManifest atomically writes the manifest as JSON to path.
func (m *Manager) WriteManifest(path string) error {
	return WriteManifest(path, m.Manifest())
}

// WriteManifest atomically writes man as JSON to path.
func WriteManifest(path string, man Manifest) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}
