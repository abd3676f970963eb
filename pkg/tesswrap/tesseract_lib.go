//go:build tesseract_lib

package tesswrap

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raff/go-tesseract"
)

func init() {
	Backend = "go-tesseract"
	Version = tesseract.Version()
	Initialized = true
}

type libWorker struct {
	mu sync.Mutex
	// ocr and end close over the TessBaseAPI handle
	ocr   func(img []byte) string
	end   func()
	langs []string
}

// NewWorker returns a Worker holding an initialized TessBaseAPI handle.
func NewWorker(ctx context.Context, cfg Config) (Worker, error) {
	dir, err := unpackAll(cfg.Data, cfg.Languages)
	if err != nil {
		return nil, err
	}
	tess := tesseract.BaseAPICreate()
	if ret := tess.Init3(dir, strings.Join(cfg.Languages, "+")); ret != 0 {
		tess.End()
		return nil, errors.New("could not init tesseract")
	}
	tess.SetDebugVariable("debug_file", "/dev/null")
	if cfg.Options.PageSegMode != nil {
		tess.SetVariable("tessedit_pageseg_mode", strconv.Itoa(*cfg.Options.PageSegMode))
	}
	for k, v := range cfg.Options.Variables {
		tess.SetVariable(k, v)
	}
	ocr := func(img []byte) string {
		// Clear keeps the loaded language data
		defer tess.Clear()
		tess.SetImageBytes(img)
		return tess.GetUTF8Text()
	}
	return &libWorker{ocr: ocr, end: func() { tess.End() }, langs: slices.Clone(cfg.Languages)}, nil
}

func (w *libWorker) Recognize(ctx context.Context, img []byte) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ocr == nil {
		return nil, ErrTerminated
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	txt := w.ocr(img)
	return &Result{
		Text:      strings.TrimSpace(txt),
		Languages: slices.Clone(w.langs),
		Backend:   Backend,
		Duration:  time.Since(start),
	}, nil
}

func (w *libWorker) Terminate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.end != nil {
		w.end()
		w.ocr, w.end = nil, nil
	}
	return nil
}
