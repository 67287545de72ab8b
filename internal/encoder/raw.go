package encoder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/kartoza/kartoza-dualcam/internal/models"
)

// ErrFrameSize is returned for frames whose dimensions a .kvr record cannot hold.
var ErrFrameSize = errors.New("frame dimensions out of range")

// RawMagic opens every .kvr file.
var RawMagic = [4]byte{'K', 'V', 'R', '1'}

const (
	rawTrackVideo byte = 0
	rawTrackAudio byte = 1
)

// RawRecord is one decoded sample record of a .kvr file.
type RawRecord struct {
	Kind   models.SampleKind
	PTS    models.Time
	Width  int
	Height int
	Data   []byte
}

type rawWriter struct {
	f *os.File
	w *bufio.Writer
}

func openRawWriter(path string, _ models.Sample, _ Config) (sampleWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	w := bufio.NewWriterSize(f, 256*1024)
	if _, err := w.Write(RawMagic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &rawWriter{f: f, w: w}, nil
}

func (r *rawWriter) Ready(models.SampleKind) bool { return true }

func (r *rawWriter) WriteVideo(s models.Sample) error {
	return r.write(rawTrackVideo, s)
}

func (r *rawWriter) WriteAudio(s models.Sample) error {
	return r.write(rawTrackAudio, s)
}

func (r *rawWriter) write(track byte, s models.Sample) error {
	if len(s.Data) > math.MaxUint32 {
		return fmt.Errorf("sample too large: %d bytes", len(s.Data))
	}
	if s.Width < 0 || s.Width > math.MaxUint16 || s.Height < 0 || s.Height > math.MaxUint16 {
		return fmt.Errorf("%w: %dx%d", ErrFrameSize, s.Width, s.Height)
	}
	var hdr [1 + 8 + 4 + 2 + 2 + 4]byte
	hdr[0] = track
	binary.BigEndian.PutUint64(hdr[1:9], uint64(s.PTS.Value))
	binary.BigEndian.PutUint32(hdr[9:13], uint32(s.PTS.Scale))
	binary.BigEndian.PutUint16(hdr[13:15], uint16(s.Width))
	binary.BigEndian.PutUint16(hdr[15:17], uint16(s.Height))
	binary.BigEndian.PutUint32(hdr[17:21], uint32(len(s.Data)))
	if _, err := r.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := r.w.Write(s.Data)
	return err
}

func (r *rawWriter) Close() error {
	flushErr := r.w.Flush()
	syncErr := r.f.Sync()
	closeErr := r.f.Close()
	return errors.Join(flushErr, syncErr, closeErr)
}

// ReadRaw decodes every record of a .kvr stream.
func ReadRaw(rd io.Reader) ([]RawRecord, error) {
	br := bufio.NewReader(rd)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if magic != RawMagic {
		return nil, fmt.Errorf("not a kvr file")
	}

	var records []RawRecord
	for {
		var hdr [21]byte
		_, err := io.ReadFull(br, hdr[:])
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("truncated record header: %w", err)
		}
		rec := RawRecord{
			Kind: models.KindVideo,
			PTS: models.Time{
				Value: int64(binary.BigEndian.Uint64(hdr[1:9])),
				Scale: int32(binary.BigEndian.Uint32(hdr[9:13])),
			},
			Width:  int(binary.BigEndian.Uint16(hdr[13:15])),
			Height: int(binary.BigEndian.Uint16(hdr[15:17])),
		}
		if hdr[0] == rawTrackAudio {
			rec.Kind = models.KindAudio
		}
		rec.Data = make([]byte, binary.BigEndian.Uint32(hdr[17:21]))
		if _, err := io.ReadFull(br, rec.Data); err != nil {
			return records, fmt.Errorf("truncated record payload: %w", err)
		}
		records = append(records, rec)
	}
}
