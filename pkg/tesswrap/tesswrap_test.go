package tesswrap

import (
	"io"
	"maps"
	"os"
	"path/filepath"
	"testing"
)

func TestOptionsMerge(t *testing.T) {
	defaults := Options{PageSegMode: PSM(3), Variables: map[string]string{"a": "1", "b": "2"}}
	merged := defaults.Merge(Options{Variables: map[string]string{"b": "x", "c": "3"}})
	if *merged.PageSegMode != 3 {
		t.Errorf("unset override must keep default psm, got %d", *merged.PageSegMode)
	}
	want := map[string]string{"a": "1", "b": "x", "c": "3"}
	if !maps.Equal(merged.Variables, want) {
		t.Errorf("want %v, got %v", want, merged.Variables)
	}
	if defaults.Variables["b"] != "2" {
		t.Error("Merge must not modify the receiver")
	}
	merged = defaults.Merge(Options{PageSegMode: PSM(6)})
	if *merged.PageSegMode != 6 {
		t.Errorf("want psm 6, got %d", *merged.PageSegMode)
	}
	if merged = (Options{}).Merge(Options{}); merged.PageSegMode != nil || merged.Variables != nil {
		t.Errorf("merging empty options should be empty, got %+v", merged)
	}
}

func TestMeanConfidence(t *testing.T) {
	if meanConfidence(nil) != 0 {
		t.Error("want 0 for no words")
	}
	got := meanConfidence([]Word{{Confidence: 0.5}, {Confidence: 1}})
	if got != 0.75 {
		t.Errorf("want 0.75, got %v", got)
	}
}

// dirData serves trained data from a directory of unpacked files, as used by the tests.
type dirData string

func (d dirData) Unpack(lang string) (string, error) {
	if _, err := os.Stat(filepath.Join(string(d), lang+".traineddata")); err != nil {
		return "", err
	}
	return string(d), nil
}

func (d dirData) OpenDecompressed(lang string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(string(d), lang+".traineddata"))
}

func TestUnpackAll(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "eng.traineddata"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := unpackAll(dirData(dir), []string{"eng"})
	if err != nil || got != dir {
		t.Errorf("want %s, got %s (%v)", dir, got, err)
	}
	if _, err := unpackAll(dirData(dir), []string{"eng", "deu"}); err == nil {
		t.Error("want error for missing data")
	}
	if _, err := unpackAll(dirData(dir), nil); err != ErrNoLanguages {
		t.Errorf("want ErrNoLanguages, got %v", err)
	}
}
