package captcha

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPutNormalizesToJPEG(t *testing.T) {
	sink, err := NewFileSink(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	path, err := sink.Put(context.Background(), "letter-1", pngBytes(t, 120, 40))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "letter-1.jpg") {
		t.Errorf("path = %q, want a .jpg keyed by letter id", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// JPEG SOI marker
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("stored image should be JPEG encoded")
	}
}

func TestPutKeepsRawBytesWhenUndecodable(t *testing.T) {
	sink, err := NewFileSink(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	raw := []byte("not an image at all")
	path, err := sink.Put(context.Background(), "letter-2", raw)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Ext(path) != ".bin" {
		t.Errorf("undecodable payload should be stored as .bin, got %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, raw) {
		t.Error("raw payload must pass through unchanged")
	}
}

func TestPendingAndClear(t *testing.T) {
	sink, err := NewFileSink(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sink.Put(context.Background(), "letter-3", pngBytes(t, 10, 10)); err != nil {
		t.Fatal(err)
	}

	if ids := sink.Pending(); len(ids) != 1 || ids[0] != "letter-3" {
		t.Errorf("Pending = %v", ids)
	}
	path, ok := sink.ImagePath("letter-3")
	if !ok {
		t.Fatal("image path should be tracked")
	}

	sink.Clear("letter-3")
	if len(sink.Pending()) != 0 {
		t.Error("cleared challenge should leave the pending list")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cleared challenge image should be removed from disk")
	}
}

func TestRepeatedPutReplacesChallenge(t *testing.T) {
	sink, err := NewFileSink(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sink.Put(context.Background(), "letter-4", pngBytes(t, 10, 10)); err != nil {
		t.Fatal(err)
	}
	if _, err := sink.Put(context.Background(), "letter-4", pngBytes(t, 20, 20)); err != nil {
		t.Fatal(err)
	}
	if ids := sink.Pending(); len(ids) != 1 {
		t.Errorf("replacing a challenge must not duplicate the pending entry: %v", ids)
	}
}
