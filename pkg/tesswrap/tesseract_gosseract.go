//go:build gosseract

package tesswrap

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
)

func init() {
	Backend = "gosseract"
	Version = gosseract.Version()
	Initialized = true
}

type gosseractWorker struct {
	mu     sync.Mutex
	client *gosseract.Client
	langs  []string
}

// NewWorker returns a Worker holding a libtesseract client.
func NewWorker(ctx context.Context, cfg Config) (Worker, error) {
	dir, err := unpackAll(cfg.Data, cfg.Languages)
	if err != nil {
		return nil, err
	}
	client := gosseract.NewClient()
	if err := configure(client, dir, cfg); err != nil {
		client.Close()
		return nil, err
	}
	return &gosseractWorker{client: client, langs: slices.Clone(cfg.Languages)}, nil
}

func configure(client *gosseract.Client, dir string, cfg Config) error {
	if err := client.SetTessdataPrefix(dir); err != nil {
		return fmt.Errorf("set tessdata prefix: %w", err)
	}
	if err := client.SetLanguage(cfg.Languages...); err != nil {
		return fmt.Errorf("set languages: %w", err)
	}
	if cfg.Options.PageSegMode != nil {
		if err := client.SetPageSegMode(gosseract.PageSegMode(*cfg.Options.PageSegMode)); err != nil {
			return fmt.Errorf("set page seg mode: %w", err)
		}
	}
	for k, v := range cfg.Options.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	client.Trim = true
	return client.DisableOutput()
}

func (w *gosseractWorker) Recognize(ctx context.Context, img []byte) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client == nil {
		return nil, ErrTerminated
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := w.client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := w.client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	words := w.words()
	return &Result{
		Text:       text,
		Confidence: meanConfidence(words),
		Words:      words,
		Languages:  slices.Clone(w.langs),
		Backend:    Backend,
		Duration:   time.Since(start),
	}, nil
}

// words returns nil if bounding boxes are not available; the text is still valid then
func (w *gosseractWorker) words() []Word {
	boxes, err := w.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil
	}
	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: box.Confidence / 100,
			Bounds:     Bounds{X1: box.Box.Min.X, Y1: box.Box.Min.Y, X2: box.Box.Max.X, Y2: box.Box.Max.Y},
		})
	}
	return words
}

func (w *gosseractWorker) Terminate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client == nil {
		return nil
	}
	err := w.client.Close()
	w.client = nil
	return err
}
