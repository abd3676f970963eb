// Package langdata manages Tesseract language data ("assets") on disk:
// listing what is installed, downloading what is missing and unpacking
// assets for engines which can't read compressed trained data.
package langdata

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/klauspost/compress/gzip"
)

const (
	// AssetExt is appended to a language code to name its asset file.
	AssetExt = ".traineddata.gz"
	// UnpackedExt is the extension of decompressed trained data in TessdataDir.
	UnpackedExt = ".traineddata"
	// TessdataDir is the subdirectory of the asset root holding unpacked trained data.
	TessdataDir = "tessdata"
)

var validLang = regexp2.MustCompile(`^[A-Za-z0-9_-]+\z`, regexp2.None)

// Store is the asset root directory. Every query reads the filesystem; nothing is cached.
type Store struct {
	root    string
	log     *slog.Logger
	readDir func(name string) ([]os.DirEntry, error)
}

func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{root: filepath.Clean(root), log: logger, readDir: os.ReadDir}
}

// Root returns the asset root directory.
func (s *Store) Root() string {
	return s.root
}

// TessdataPath returns the directory unpacked trained data is written to.
func (s *Store) TessdataPath() string {
	return filepath.Join(s.root, TessdataDir)
}

// ValidateLang returns ErrInvalidLanguage if lang can not be used as a file name.
func ValidateLang(lang string) error {
	if ok, err := validLang.MatchString(lang); err != nil || !ok {
		return fmt.Errorf("%w: '%s'", ErrInvalidLanguage, lang)
	}
	return nil
}

// FileName returns the asset file name for lang, e.g. eng.traineddata.gz
func FileName(lang string) string {
	return lang + AssetExt
}

// LangFromFileName is the inverse of FileName.
func LangFromFileName(name string) (string, bool) {
	lang, ok := strings.CutSuffix(name, AssetExt)
	if !ok || lang == "" {
		return "", false
	}
	return lang, true
}

// AssetPath returns the path of lang's asset, whether it exists or not.
func (s *Store) AssetPath(lang string) string {
	return filepath.Join(s.root, FileName(lang))
}

// EnsureRoot creates the asset root and its parents if necessary.
func (s *Store) EnsureRoot() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return &FilesystemError{Op: "create", Path: s.root, Err: err}
	}
	return nil
}

// ListInstalledErr returns the sorted codes of all installed languages.
func (s *Store) ListInstalledErr() ([]string, error) {
	if err := s.EnsureRoot(); err != nil {
		return nil, err
	}
	entries, err := s.readDir(s.root)
	if err != nil {
		return nil, &FilesystemError{Op: "list", Path: s.root, Err: err}
	}
	langs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if lang, ok := LangFromFileName(e.Name()); ok {
			langs = append(langs, lang)
		}
	}
	slices.Sort(langs)
	return langs, nil
}

// ListInstalled is like ListInstalledErr, but logs errors and returns an empty slice instead.
// An empty result therefore means either nothing is installed or the root could not be read.
func (s *Store) ListInstalled() []string {
	langs, err := s.ListInstalledErr()
	if err != nil {
		s.log.Error("Listing installed language data failed", "root", s.root, "err", err)
		return []string{}
	}
	return langs
}

// IsInstalled reports whether lang's asset exists right now.
func (s *Store) IsInstalled(lang string) bool {
	if ValidateLang(lang) != nil {
		return false
	}
	info, err := os.Stat(s.AssetPath(lang))
	return err == nil && info.Mode().IsRegular()
}

// Missing returns the codes in langs that are not installed, in their original order
// and without duplicates.
func (s *Store) Missing(langs []string) []string {
	installed := s.ListInstalled()
	var missing []string
	for _, lang := range Unique(langs) {
		if !slices.Contains(installed, lang) {
			missing = append(missing, lang)
		}
	}
	return missing
}

// Unique returns a copy of langs without duplicates, keeping the first occurrence of each code.
func Unique(langs []string) []string {
	unique := make([]string, 0, len(langs))
	for _, lang := range langs {
		if !slices.Contains(unique, lang) {
			unique = append(unique, lang)
		}
	}
	return unique
}

// Open opens lang's compressed asset for reading.
func (s *Store) Open(lang string) (*os.File, error) {
	if err := ValidateLang(lang); err != nil {
		return nil, err
	}
	path := s.AssetPath(lang)
	f, err := os.Open(path)
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: path, Err: err}
	}
	return f, nil
}

// OpenDecompressed returns a reader of lang's uncompressed trained data.
// Closing it closes the underlying file.
func (s *Store) OpenDecompressed(lang string) (io.ReadCloser, error) {
	f, err := s.Open(lang)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, &FilesystemError{Op: "decompress", Path: f.Name(), Err: err}
	}
	return &gzipFile{Reader: zr, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if ferr := g.f.Close(); err == nil {
		err = ferr
	}
	return err
}

// Unpack writes lang's decompressed trained data to TessdataPath, unless an unpacked copy
// that is not older than the asset exists. It returns TessdataPath.
func (s *Store) Unpack(lang string) (string, error) {
	dir := s.TessdataPath()
	if err := ValidateLang(lang); err != nil {
		return dir, err
	}
	asset, err := os.Stat(s.AssetPath(lang))
	if err != nil {
		return dir, &FilesystemError{Op: "stat", Path: s.AssetPath(lang), Err: err}
	}
	dest := filepath.Join(dir, lang+UnpackedExt)
	if unpacked, err := os.Stat(dest); err == nil && !unpacked.ModTime().Before(asset.ModTime()) {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dir, &FilesystemError{Op: "create", Path: dir, Err: err}
	}
	r, err := s.OpenDecompressed(lang)
	if err != nil {
		return dir, err
	}
	defer r.Close()
	tmp, err := os.CreateTemp(dir, lang+"-*.tmp")
	if err != nil {
		return dir, &FilesystemError{Op: "create", Path: dir, Err: err}
	}
	defer os.Remove(tmp.Name())
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return dir, &FilesystemError{Op: "unpack", Path: dest, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return dir, &FilesystemError{Op: "rename", Path: dest, Err: err}
	}
	s.log.Debug("Language data unpacked", "lang", lang, "path", dest, "bytes", n)
	return dir, nil
}
