package recordings

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// Export moves the files of recs into dir and returns the recordings with
// their new paths. Files are named clip-NN-<output><ext> in recording order.
// A recording whose files cannot all be moved is left where it was and its
// error is reported; the others are still exported.
func Export(recs []models.Recording, dir string) ([]models.Recording, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return recs, fmt.Errorf("failed to create export directory: %w", err)
	}

	out := make([]models.Recording, 0, len(recs))
	var errs []error
	for i, rec := range recs {
		moved := rec
		moved.Videos = make([]models.Video, len(rec.Videos))
		copy(moved.Videos, rec.Videos)

		var err error
		for j, v := range rec.Videos {
			name := fmt.Sprintf("clip-%02d-%s%s", i+1, outputName(j), filepath.Ext(v.Path))
			dst := filepath.Join(dir, name)
			if err = moveFile(v.Path, dst); err != nil {
				err = fmt.Errorf("failed to export %s: %w", rec.ID, err)
				break
			}
			moved.Videos[j].Path = dst
		}
		if err != nil {
			errs = append(errs, err)
			out = append(out, rec)
			continue
		}
		out = append(out, moved)
	}
	return out, errors.Join(errs...)
}

func outputName(i int) string {
	if i == 0 {
		return models.OutputPrimary.String()
	}
	return models.OutputSecondary.String()
}

// moveFile renames src to dst, copying across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
