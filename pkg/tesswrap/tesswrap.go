/*
Package tesswrap is a rather limited wrapper for Tesseract OCR v5.
It defaults to using the CLI.
Alternative implementations can be selected by build tags:

	gosseract       otiai10/gosseract (cgo, libtesseract)
	tesseract_wasm  danlock/gogosseract (Tesseract compiled to WASM, one language per worker)
	tesseract_lib   raff/go-tesseract (cgo, libtesseract)

Every Worker is bound to a set of languages when it is created and must be terminated by the caller.
*/
package tesswrap

import (
	"context"
	"errors"
	"io"
	"maps"
	"time"
)

var (
	// Initialized indicates if the selected backend is usable
	Initialized bool = true
	// Backend is the name of the implementation selected at build time
	Backend string
	Version string
)

var (
	ErrTerminated   = errors.New("worker has been terminated")
	ErrNotAvailable = errors.New("tesseract is not available")
	ErrNoLanguages  = errors.New("no languages given")
)

// LangData gives backends access to installed language data.
type LangData interface {
	// Unpack makes lang's trained data available as <dir>/<lang>.traineddata and returns dir
	Unpack(lang string) (string, error)
	// OpenDecompressed returns a reader of lang's trained data
	OpenDecompressed(lang string) (io.ReadCloser, error)
}

// Config binds a new Worker to language data.
type Config struct {
	Data      LangData
	Languages []string
	Options   Options
}

// Options are passed through to Tesseract.
type Options struct {
	// Page segmentation mode, see tesseract --help-psm. Nil means Tesseract's default
	PageSegMode *int `json:"psm,omitempty"`
	// Tesseract variables, e.g. tessedit_char_whitelist
	Variables map[string]string `json:"variables,omitempty"`
}

// PSM returns a pointer to mode for use in Options.
func PSM(mode int) *int {
	return &mode
}

// Merge returns a copy of o with every field set in override replacing o's.
// Variables are merged key by key.
func (o Options) Merge(override Options) Options {
	merged := Options{PageSegMode: o.PageSegMode}
	if override.PageSegMode != nil {
		merged.PageSegMode = override.PageSegMode
	}
	if len(o.Variables)+len(override.Variables) > 0 {
		merged.Variables = make(map[string]string, len(o.Variables)+len(override.Variables))
		maps.Copy(merged.Variables, o.Variables)
		maps.Copy(merged.Variables, override.Variables)
	}
	return merged
}

// Bounds is a rectangle in pixel coordinates, origin at the top left.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Word is a single recognized word.
type Word struct {
	Text string `json:"text"`
	// 0..1
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// Result of a recognition run.
type Result struct {
	Text string `json:"text"`
	// mean word confidence (0..1), 0 if the backend does not report confidences
	Confidence float64       `json:"confidence"`
	Words      []Word        `json:"words,omitempty"`
	Languages  []string      `json:"languages"`
	Backend    string        `json:"backend"`
	Duration   time.Duration `json:"duration,format:nano"`
}

// Worker is a Tesseract instance bound to a set of languages.
type Worker interface {
	Recognize(ctx context.Context, img []byte) (*Result, error)
	// Terminate releases the worker's resources. Recognize fails afterwards.
	Terminate() error
}

// NewWorkerFunc constructs a Worker. NewWorker is the implementation selected at build time.
type NewWorkerFunc func(ctx context.Context, cfg Config) (Worker, error)

func meanConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

// unpackAll unpacks every language and returns the common tessdata directory.
func unpackAll(data LangData, langs []string) (string, error) {
	if len(langs) == 0 {
		return "", ErrNoLanguages
	}
	var dir string
	for _, lang := range langs {
		d, err := data.Unpack(lang)
		if err != nil {
			return "", err
		}
		dir = d
	}
	return dir, nil
}
