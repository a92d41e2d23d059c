// Package captcha persists challenge images so a human (or a solver
// adapter) can look at them out of band.
package captcha

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"

	"formageddon/internal/application/port/output"
)

const maxChallengeWidth = 800

// FileSink writes challenge images under a directory, one file per
// letter. Images are normalized to JPEG so the console can serve them
// with a single content type; undecodable payloads are kept verbatim.
type FileSink struct {
	dir    string
	logger output.LoggerPort

	mu      sync.Mutex
	pending map[string]string // letter id -> file path
}

var _ output.ChallengeSink = (*FileSink)(nil)

func NewFileSink(dir string, logger output.LoggerPort) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create captcha dir: %w", err)
	}
	if logger == nil {
		logger = output.NopLogger{}
	}
	return &FileSink{
		dir:     dir,
		logger:  logger,
		pending: make(map[string]string),
	}, nil
}

// Put stores the challenge image for letterID and returns the path the
// image was written to. A repeated Put for the same letter replaces the
// previous challenge.
func (s *FileSink) Put(ctx context.Context, letterID string, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, ext := s.normalize(letterID, image)
	path := filepath.Join(s.dir, letterID+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write challenge image: %w", err)
	}

	s.mu.Lock()
	s.pending[letterID] = path
	s.mu.Unlock()

	s.logger.Info("captcha challenge stored", "letter_id", letterID, "path", path)
	return path, nil
}

// normalize decodes the image, shrinks oversized challenges and
// re-encodes as JPEG. Raw bytes pass through when decoding fails.
func (s *FileSink) normalize(letterID string, raw []byte) ([]byte, string) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		s.logger.Warn("challenge image not decodable, storing raw bytes",
			"letter_id", letterID, "error", err)
		return raw, ".bin"
	}

	if img.Bounds().Dx() > maxChallengeWidth {
		img = imaging.Resize(img, maxChallengeWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		s.logger.Warn("challenge image re-encode failed, storing raw bytes",
			"letter_id", letterID, "error", err)
		return raw, ".bin"
	}
	return buf.Bytes(), ".jpg"
}

// Pending lists letter ids with an unsolved challenge on disk.
func (s *FileSink) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}

// ImagePath returns the stored challenge path for a letter.
func (s *FileSink) ImagePath(letterID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.pending[letterID]
	return path, ok
}

// Clear drops the pending record and the image file once a challenge
// has been answered.
func (s *FileSink) Clear(letterID string) {
	s.mu.Lock()
	path, ok := s.pending[letterID]
	delete(s.pending, letterID)
	s.mu.Unlock()

	if ok {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not remove challenge image", "path", path, "error", err)
		}
	}
}
