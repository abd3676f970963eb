// Package recognizer creates Tesseract workers once the language data they need is installed.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/johbar/ocr-service/internal/langdata"
	"github.com/johbar/ocr-service/pkg/tesswrap"
)

// ErrNoLanguages is returned if no language was requested and none is installed.
var ErrNoLanguages = errors.New("no language data installed")

// MissingAssetsError is returned when a worker is requested for languages that are not installed.
type MissingAssetsError struct {
	Langs []string
}

func (e *MissingAssetsError) Error() string {
	return "language data not installed: " + strings.Join(e.Langs, ", ")
}

// Factory constructs workers bound to the languages of a langdata.Store.
type Factory struct {
	store     *langdata.Store
	defaults  tesswrap.Options
	newWorker tesswrap.NewWorkerFunc
	log       *slog.Logger
}

// New returns a Factory. If newWorker is nil, the backend selected at build time is used.
func New(store *langdata.Store, defaults tesswrap.Options, newWorker tesswrap.NewWorkerFunc, logger *slog.Logger) *Factory {
	if newWorker == nil {
		newWorker = tesswrap.NewWorker
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{store: store, defaults: defaults, newWorker: newWorker, log: logger}
}

// CreateWorker returns a new worker for langs, with opts merged over the factory's defaults.
// If any language is not installed, a *MissingAssetsError is returned and no worker is created.
// The caller must terminate the worker.
func (f *Factory) CreateWorker(ctx context.Context, langs []string, opts tesswrap.Options) (tesswrap.Worker, error) {
	if len(langs) == 0 {
		return nil, tesswrap.ErrNoLanguages
	}
	langs = langdata.Unique(langs)
	if missing := f.store.Missing(langs); len(missing) > 0 {
		return nil, &MissingAssetsError{Langs: missing}
	}
	w, err := f.newWorker(ctx, tesswrap.Config{
		Data:      f.store,
		Languages: langs,
		Options:   f.defaults.Merge(opts),
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s worker for %s: %w", tesswrap.Backend, strings.Join(langs, "+"), err)
	}
	f.log.Debug("Worker created", "langs", langs, "backend", tesswrap.Backend)
	return w, nil
}

// ResolveLanguages returns langs if not empty, else the first installed language.
func (f *Factory) ResolveLanguages(langs []string) ([]string, error) {
	if len(langs) > 0 {
		return langs, nil
	}
	installed := f.store.ListInstalled()
	if len(installed) == 0 {
		return nil, ErrNoLanguages
	}
	return installed[:1], nil
}

// Recognize runs a single recognition with a fresh worker, which is terminated afterwards,
// whether recognition succeeded or not. Empty langs means the first installed language.
func (f *Factory) Recognize(ctx context.Context, langs []string, img []byte, opts tesswrap.Options) (*tesswrap.Result, error) {
	langs, err := f.ResolveLanguages(langs)
	if err != nil {
		return nil, err
	}
	w, err := f.CreateWorker(ctx, langs, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := w.Terminate(); err != nil {
			f.log.Warn("Terminating worker failed", "langs", langs, "err", err)
		}
	}()
	res, err := w.Recognize(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("recognizing text (%s): %w", strings.Join(langs, "+"), err)
	}
	f.log.Info("Text recognized", "langs", langs, "chars", len(res.Text), "confidence", res.Confidence, "duration", res.Duration)
	return res, nil
}
