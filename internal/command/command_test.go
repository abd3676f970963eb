package command

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/johbar/ocr-service/internal/langdata"
	"github.com/johbar/ocr-service/internal/recognizer"
	"github.com/johbar/ocr-service/pkg/tesswrap"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want Command
	}{
		{"/ocr", Command{Kind: Recognize}},
		{"/OCR", Command{Kind: Recognize}},
		{"/ocr@MyBot eng", Command{Kind: Recognize, Langs: []string{"eng"}}},
		{"/ocr eng+deu", Command{Kind: Recognize, Langs: []string{"eng", "deu"}}},
		{"/ocr eng deu -d", Command{Kind: Recognize, Langs: []string{"eng", "deu"}, Debug: true}},
		{"/ocr --debug", Command{Kind: Recognize, Debug: true}},
		{"/ocr deu -j", Command{Kind: Recognize, Langs: []string{"deu"}, Dehyphenate: true}},
		{"/ocr langs", Command{Kind: List}},
		{"  /ocr   list ", Command{Kind: List}},
		{"/ocr help", Command{Kind: Help}},
		{"/ocr install chi_sim", Command{Kind: Install, Langs: []string{"chi_sim"}}},
		{"/ocr install eng+fra spa", Command{Kind: Install, Langs: []string{"eng", "fra", "spa"}}},
		{"/ocr install", Command{Kind: Help}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			if err != nil {
				t.Fatal(err)
			}
			if got.Kind != tt.want.Kind || got.Debug != tt.want.Debug || got.Dehyphenate != tt.want.Dehyphenate || !slices.Equal(got.Langs, tt.want.Langs) {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseRejectsOtherMessages(t *testing.T) {
	for _, text := range []string{"", "hello", "/ocrx", "/help", "please /ocr", "ocr", "ocr is cool", "OCR eng"} {
		if _, err := Parse(text); err != ErrNotACommand {
			t.Errorf("Parse(%q): want ErrNotACommand, got %v", text, err)
		}
	}
}

func TestSplitLangs(t *testing.T) {
	got := SplitLangs("eng++deu,fra")
	if !slices.Equal(got, []string{"eng", "deu", "fra"}) {
		t.Errorf("got %v", got)
	}
}

type echoWorker struct{ langs []string }

func (w *echoWorker) Recognize(ctx context.Context, img []byte) (*tesswrap.Result, error) {
	return &tesswrap.Result{Text: " hello \n", Confidence: 0.9, Languages: w.langs, Backend: "fake"}, nil
}

func (w *echoWorker) Terminate() error { return nil }

func newEchoWorker(ctx context.Context, cfg tesswrap.Config) (tesswrap.Worker, error) {
	return &echoWorker{langs: cfg.Languages}, nil
}

func newTestHandler(t *testing.T, installed ...string) *Handler {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/xxx/") {
			http.NotFound(w, r)
			return
		}
		zw := gzip.NewWriter(w)
		zw.Write([]byte("data"))
		zw.Close()
	}))
	t.Cleanup(srv.Close)

	store := langdata.NewStore(filepath.Join(t.TempDir(), "langdata"), nil)
	if err := store.EnsureRoot(); err != nil {
		t.Fatal(err)
	}
	for _, lang := range installed {
		if err := os.WriteFile(store.AssetPath(lang), []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	installer := langdata.NewInstaller(store, langdata.NewHTTPSource(srv.URL+"/{lang}/{file}", srv.Client()), 5*time.Second, nil)
	factory := recognizer.New(store, tesswrap.Options{}, newEchoWorker, nil)
	return NewHandler(installer, factory, 1<<20, nil)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestListAndInstall(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	reply := h.ExecuteText(ctx, "/ocr langs", nil, "en")
	if reply.Text != msgNoneInstalled {
		t.Errorf("got %q", reply.Text)
	}
	reply = h.ExecuteText(ctx, "/ocr install eng", nil, "en")
	if reply.Failed || !strings.Contains(reply.Text, "eng") {
		t.Fatalf("install failed: %q", reply.Text)
	}
	reply = h.ExecuteText(ctx, "/ocr install deu+eng", nil, "en")
	if reply.Failed {
		t.Fatalf("install failed: %q", reply.Text)
	}
	reply = h.ExecuteText(ctx, "/ocr langs", nil, "en")
	if reply.Text != "Installed languages: deu, eng" {
		t.Errorf("got %q", reply.Text)
	}
}

func TestInstallErrorsBecomeReplies(t *testing.T) {
	h := newTestHandler(t)
	reply := h.ExecuteText(context.Background(), "/ocr install xxx", nil, "en")
	if !reply.Failed || !strings.Contains(reply.Text, "404") {
		t.Errorf("got %+v", reply)
	}
	reply = h.ExecuteText(context.Background(), "/ocr install ../etc", nil, "en")
	if !reply.Failed || !strings.HasPrefix(reply.Text, "Invalid language code") {
		t.Errorf("got %+v", reply)
	}
}

func TestGermanReplies(t *testing.T) {
	h := newTestHandler(t)
	reply := h.ExecuteText(context.Background(), "/ocr langs", nil, "de-AT,de;q=0.9,en;q=0.5")
	if !strings.HasPrefix(reply.Text, "Keine Sprachdaten installiert") {
		t.Errorf("got %q", reply.Text)
	}
	reply = h.ExecuteText(context.Background(), "/ocr", nil, "de")
	if reply.Text != "Bitte ein Bild anhängen." {
		t.Errorf("got %q", reply.Text)
	}
}

func TestUnknownLocaleFallsBackToEnglish(t *testing.T) {
	h := newTestHandler(t)
	reply := h.ExecuteText(context.Background(), "/ocr", nil, "ja")
	if reply.Text != msgNoImage {
		t.Errorf("got %q", reply.Text)
	}
}

func TestRecognize(t *testing.T) {
	h := newTestHandler(t, "deu", "eng")
	ctx := context.Background()

	reply := h.ExecuteText(ctx, "/ocr", testPNG(t), "en")
	if reply.Failed || reply.Text != "hello" {
		t.Errorf("got %+v", reply)
	}
	if reply.Diagnostics != "" {
		t.Error("diagnostics only in debug mode")
	}

	reply = h.ExecuteText(ctx, "/ocr eng -d", testPNG(t), "en")
	if reply.Failed || !strings.Contains(reply.Diagnostics, `"hello"`) || !strings.Contains(reply.Diagnostics, `"eng"`) {
		t.Errorf("got %+v", reply)
	}
}

func TestRecognizeFailures(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t, "eng")

	reply := h.ExecuteText(ctx, "/ocr eng+fra", testPNG(t), "en")
	if !reply.Failed || !strings.HasPrefix(reply.Text, "Language data not installed: fra") {
		t.Errorf("got %+v", reply)
	}
	reply = h.ExecuteText(ctx, "/ocr", []byte("%PDF-1.4 not an image"), "en")
	if !reply.Failed || !strings.HasPrefix(reply.Text, "The attachment can not be read") {
		t.Errorf("got %+v", reply)
	}

	empty := newTestHandler(t)
	reply = empty.ExecuteText(ctx, "/ocr", testPNG(t), "en")
	if !reply.Failed || reply.Text != msgNoneInstalled {
		t.Errorf("got %+v", reply)
	}
}

func TestNotACommandGetsUsage(t *testing.T) {
	h := newTestHandler(t)
	reply := h.ExecuteText(context.Background(), "hi there", nil)
	if !strings.HasPrefix(reply.Text, "Usage:") {
		t.Errorf("got %q", reply.Text)
	}
}

type hyphenWorker struct{}

func (hyphenWorker) Recognize(ctx context.Context, img []byte) (*tesswrap.Result, error) {
	return &tesswrap.Result{Text: "Zusammen-\narbeit\n"}, nil
}

func (hyphenWorker) Terminate() error { return nil }

func TestRecognizeDehyphenate(t *testing.T) {
	store := langdata.NewStore(t.TempDir(), nil)
	if err := os.WriteFile(store.AssetPath("deu"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	factory := recognizer.New(store, tesswrap.Options{}, func(context.Context, tesswrap.Config) (tesswrap.Worker, error) {
		return hyphenWorker{}, nil
	}, nil)
	h := NewHandler(langdata.NewInstaller(store, nil, time.Second, nil), factory, 0, nil)

	if reply := h.ExecuteText(context.Background(), "/ocr", testPNG(t)); reply.Text != "Zusammen-\narbeit" {
		t.Errorf("got %q", reply.Text)
	}
	if reply := h.ExecuteText(context.Background(), "/ocr -j", testPNG(t)); reply.Text != "Zusammenarbeit" {
		t.Errorf("got %q", reply.Text)
	}
}
