//go:build tesseract_wasm

package tesswrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danlock/gogosseract"
)

// ErrSingleLanguage is returned when a WASM worker is requested for more than one language.
var ErrSingleLanguage = errors.New("the WASM backend supports exactly one language per worker")

func init() {
	Backend = "gogosseract"
	Initialized = true
}

type wasmWorker struct {
	mu   sync.Mutex
	tess *gogosseract.Tesseract
	lang string
}

// NewWorker compiles Tesseract's WASM build and loads the decompressed trained data into it.
func NewWorker(ctx context.Context, cfg Config) (Worker, error) {
	if len(cfg.Languages) == 0 {
		return nil, ErrNoLanguages
	}
	if len(cfg.Languages) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrSingleLanguage, strings.Join(cfg.Languages, "+"))
	}
	lang := cfg.Languages[0]
	trainingData, err := cfg.Data.OpenDecompressed(lang)
	if err != nil {
		return nil, err
	}
	defer trainingData.Close()
	vars := make(map[string]string, len(cfg.Options.Variables)+1)
	for k, v := range cfg.Options.Variables {
		vars[k] = v
	}
	if cfg.Options.PageSegMode != nil {
		vars["tessedit_pageseg_mode"] = strconv.Itoa(*cfg.Options.PageSegMode)
	}
	tess, err := gogosseract.New(ctx, gogosseract.Config{
		Language:     lang,
		TrainingData: trainingData,
		Variables:    vars,
		// While Tesseract's output is very useful for debugging, it clutters our logs
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("loading tesseract wasm: %w", err)
	}
	return &wasmWorker{tess: tess, lang: lang}, nil
}

func (w *wasmWorker) Recognize(ctx context.Context, img []byte) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tess == nil {
		return nil, ErrTerminated
	}
	start := time.Now()
	// Load the image, without parsing it.
	if err := w.tess.LoadImage(ctx, bytes.NewReader(img), gogosseract.LoadImageOptions{}); err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	text, err := w.tess.GetText(ctx, func(progress int32) {})
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	return &Result{
		Text:      strings.TrimSpace(text),
		Languages: []string{w.lang},
		Backend:   Backend,
		Duration:  time.Since(start),
	}, nil
}

func (w *wasmWorker) Terminate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tess == nil {
		return nil
	}
	err := w.tess.Close(context.Background())
	w.tess = nil
	return err
}
