// Package imageparser accepts images submitted for recognition.
// Images are only sniffed, never decoded; decoding is left to Tesseract.
package imageparser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotAnImage = errors.New("not an image")
	ErrTooLarge   = errors.New("image too large")
	errZeroSize   = errors.New("zero-length data can not be parsed")
)

type ImageDoc struct {
	data     []byte
	mimetype string
	typ      string
}

// NewFromBytes returns an ImageDoc if data is an image not larger than maxSize bytes.
// A maxSize of 0 means no limit.
func NewFromBytes(data []byte, maxSize uint64) (*ImageDoc, error) {
	if len(data) == 0 {
		return nil, errZeroSize
	}
	if maxSize > 0 && uint64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge, humanize.Bytes(uint64(len(data))), humanize.Bytes(maxSize))
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAnImage, mtype.String())
	}
	return &ImageDoc{data: data, mimetype: mtype.String(), typ: strings.TrimPrefix(mtype.Extension(), ".")}, nil
}

// NewFromReader reads at most maxSize+1 bytes from r.
func NewFromReader(r io.Reader, maxSize uint64) (*ImageDoc, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, int64(maxSize)+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return NewFromBytes(data, maxSize)
}

// Open reads the image at path, or stdin if path is "-".
func Open(path string, maxSize uint64) (*ImageDoc, error) {
	if path == "-" {
		return NewFromReader(os.Stdin, maxSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewFromReader(f, maxSize)
}

func (d *ImageDoc) Data() []byte {
	return d.data
}

func (d *ImageDoc) MimeType() string {
	return d.mimetype
}

func (d *ImageDoc) MetadataMap() map[string]string {
	meta := make(map[string]string)
	meta["x-doctype"] = d.typ
	meta["x-image-size"] = humanize.Bytes(uint64(len(d.data)))
	return meta
}
