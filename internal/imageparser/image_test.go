package imageparser

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNewFromBytes(t *testing.T) {
	d, err := NewFromBytes(pngBytes(t), 0)
	if err != nil {
		t.Fatal(err)
	}
	if d.MimeType() != "image/png" {
		t.Errorf("want image/png, got %s", d.MimeType())
	}
	if d.MetadataMap()["x-doctype"] != "png" {
		t.Errorf("unexpected metadata %v", d.MetadataMap())
	}
}

func TestRejectsNonImages(t *testing.T) {
	_, err := NewFromBytes([]byte("%PDF-1.7\n..."), 0)
	if !errors.Is(err, ErrNotAnImage) {
		t.Errorf("want ErrNotAnImage, got %v", err)
	}
	if _, err := NewFromBytes(nil, 0); err == nil {
		t.Error("want error for empty data")
	}
}

func TestSizeLimit(t *testing.T) {
	data := pngBytes(t)
	if _, err := NewFromReader(bytes.NewReader(data), uint64(len(data))); err != nil {
		t.Errorf("image of exactly max size must be accepted: %v", err)
	}
	_, err := NewFromReader(bytes.NewReader(data), uint64(len(data)-1))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("want ErrTooLarge, got %v", err)
	}
	_, err = NewFromReader(strings.NewReader(strings.Repeat("x", 100)), 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("want ErrTooLarge, got %v", err)
	}
}
