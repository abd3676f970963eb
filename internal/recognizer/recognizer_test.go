package recognizer

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/johbar/ocr-service/internal/langdata"
	"github.com/johbar/ocr-service/pkg/tesswrap"
)

type fakeWorker struct {
	cfg        tesswrap.Config
	fail       bool
	terminated bool
}

func (w *fakeWorker) Recognize(ctx context.Context, img []byte) (*tesswrap.Result, error) {
	if w.fail {
		return nil, errors.New("engine failed")
	}
	return &tesswrap.Result{Text: string(img), Languages: w.cfg.Languages}, nil
}

func (w *fakeWorker) Terminate() error {
	w.terminated = true
	return nil
}

type workerRecorder struct {
	workers []*fakeWorker
	fail    bool
}

func (r *workerRecorder) newWorker(ctx context.Context, cfg tesswrap.Config) (tesswrap.Worker, error) {
	w := &fakeWorker{cfg: cfg, fail: r.fail}
	r.workers = append(r.workers, w)
	return w, nil
}

func newTestFactory(t *testing.T, installed ...string) (*Factory, *workerRecorder) {
	store := langdata.NewStore(t.TempDir(), nil)
	for _, lang := range installed {
		if err := os.WriteFile(store.AssetPath(lang), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	rec := &workerRecorder{}
	defaults := tesswrap.Options{PageSegMode: tesswrap.PSM(3), Variables: map[string]string{"preserve_interword_spaces": "1"}}
	return New(store, defaults, rec.newWorker, nil), rec
}

func TestCreateWorkerWithEmptyStore(t *testing.T) {
	f, rec := newTestFactory(t)
	if got := f.store.ListInstalled(); len(got) != 0 {
		t.Fatalf("want nothing installed, got %v", got)
	}
	_, err := f.CreateWorker(context.Background(), []string{"eng"}, tesswrap.Options{})
	var missing *MissingAssetsError
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingAssetsError, got %v", err)
	}
	if !slices.Equal(missing.Langs, []string{"eng"}) {
		t.Errorf("want [eng], got %v", missing.Langs)
	}
	if len(rec.workers) != 0 {
		t.Error("no worker must be constructed")
	}
}

func TestCreateWorkerNamesExactlyMissing(t *testing.T) {
	f, rec := newTestFactory(t, "eng", "deu")
	_, err := f.CreateWorker(context.Background(), []string{"fra", "eng", "spa", "deu"}, tesswrap.Options{})
	var missing *MissingAssetsError
	if !errors.As(err, &missing) {
		t.Fatalf("want MissingAssetsError, got %v", err)
	}
	if !slices.Equal(missing.Langs, []string{"fra", "spa"}) {
		t.Errorf("want [fra spa], got %v", missing.Langs)
	}
	if len(rec.workers) != 0 {
		t.Error("no worker must be constructed")
	}
}

func TestCreateWorkerMergesOptions(t *testing.T) {
	f, rec := newTestFactory(t, "eng", "deu")
	w, err := f.CreateWorker(context.Background(), []string{"deu", "eng"}, tesswrap.Options{Variables: map[string]string{"tessedit_char_whitelist": "0123456789"}})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Terminate()
	if len(rec.workers) != 1 {
		t.Fatalf("want one worker, got %d", len(rec.workers))
	}
	cfg := rec.workers[0].cfg
	if !slices.Equal(cfg.Languages, []string{"deu", "eng"}) {
		t.Errorf("language order must be kept, got %v", cfg.Languages)
	}
	if *cfg.Options.PageSegMode != 3 || cfg.Options.Variables["preserve_interword_spaces"] != "1" || cfg.Options.Variables["tessedit_char_whitelist"] != "0123456789" {
		t.Errorf("unexpected options %+v", cfg.Options)
	}
	if cfg.Data != tesswrap.LangData(f.store) {
		t.Error("worker must be bound to the factory's store")
	}
	// every call yields an independent worker
	w2, err := f.CreateWorker(context.Background(), []string{"eng"}, tesswrap.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Terminate()
	if w2 == w {
		t.Error("workers must not be reused")
	}
}

func TestCreateWorkerDropsDuplicateLanguages(t *testing.T) {
	f, rec := newTestFactory(t, "eng", "deu")
	w, err := f.CreateWorker(context.Background(), []string{"eng", "deu", "eng", "deu"}, tesswrap.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Terminate()
	if got := rec.workers[0].cfg.Languages; !slices.Equal(got, []string{"eng", "deu"}) {
		t.Errorf("want [eng deu], got %v", got)
	}
}

func TestResolveLanguages(t *testing.T) {
	f, _ := newTestFactory(t)
	if _, err := f.ResolveLanguages(nil); !errors.Is(err, ErrNoLanguages) {
		t.Errorf("want ErrNoLanguages, got %v", err)
	}
	f, _ = newTestFactory(t, "fra", "deu")
	got, err := f.ResolveLanguages(nil)
	if err != nil || !slices.Equal(got, []string{"deu"}) {
		t.Errorf("want first installed [deu], got %v (%v)", got, err)
	}
	got, _ = f.ResolveLanguages([]string{"eng"})
	if !slices.Equal(got, []string{"eng"}) {
		t.Errorf("explicit languages must win, got %v", got)
	}
}

func TestRecognizeTerminatesWorker(t *testing.T) {
	f, rec := newTestFactory(t, "eng")
	res, err := f.Recognize(context.Background(), nil, []byte("text"), tesswrap.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "text" {
		t.Errorf("got %q", res.Text)
	}
	rec.fail = true
	if _, err := f.Recognize(context.Background(), []string{"eng"}, []byte("text"), tesswrap.Options{}); err == nil {
		t.Error("want error from failing engine")
	}
	if len(rec.workers) != 2 {
		t.Fatalf("want 2 workers, got %d", len(rec.workers))
	}
	for i, w := range rec.workers {
		if !w.terminated {
			t.Errorf("worker %d not terminated", i)
		}
	}
}
