package langdata

import (
	"context"
	"errors"
	"expvar"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	downloads        = expvar.NewInt("langdata_downloads")
	downloadFailures = expvar.NewInt("langdata_download_failures")
	downloadBytes    = expvar.NewInt("langdata_download_bytes")
)

// Installer downloads assets from a Source into a Store.
type Installer struct {
	store    *Store
	source   Source
	timeout  time.Duration
	log      *slog.Logger
	inflight singleflight.Group
}

func NewInstaller(store *Store, source Source, timeout time.Duration, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Installer{store: store, source: source, timeout: timeout, log: logger}
}

// Store returns the store assets are installed to.
func (i *Installer) Store() *Store {
	return i.store
}

// Install downloads lang's asset and writes it to the store, replacing an existing one.
// Concurrent calls for the same language share a single download.
// The download is bound by the installer's timeout only; cancelling ctx does not abort it.
// A failed download may leave a partially written asset behind.
func (i *Installer) Install(ctx context.Context, lang string) error {
	if err := ValidateLang(lang); err != nil {
		return err
	}
	_, err, shared := i.inflight.Do(lang, func() (any, error) {
		return nil, i.install(ctx, lang)
	})
	if shared {
		i.log.Debug("Joined running download", "lang", lang)
	}
	return err
}

func (i *Installer) install(ctx context.Context, lang string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.timeout)
	defer cancel()
	location := i.source.Location(lang)
	start := time.Now()
	i.log.Info("Downloading language data", "lang", lang, "from", location, "timeout", i.timeout)
	downloads.Add(1)

	body, err := i.source.Fetch(ctx, lang)
	if err != nil {
		downloadFailures.Add(1)
		return err
	}
	defer body.Close()

	if err := i.store.EnsureRoot(); err != nil {
		downloadFailures.Add(1)
		return err
	}
	path := i.store.AssetPath(lang)
	f, err := os.Create(path)
	if err != nil {
		downloadFailures.Add(1)
		return &FilesystemError{Op: "open", Path: path, Err: err}
	}
	w := &errWriter{w: f}
	n, err := io.Copy(w, body)
	downloadBytes.Add(n)
	if cerr := f.Close(); err == nil && cerr != nil {
		w.err = cerr
		err = cerr
	}
	if err != nil {
		downloadFailures.Add(1)
		if w.err != nil {
			return &FilesystemError{Op: "write", Path: path, Err: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(err, ctxErr)
		}
		return &DownloadError{Lang: lang, URL: location, Err: err}
	}
	i.log.Info("Language data installed", "lang", lang, "path", path, "size", humanize.Bytes(uint64(n)), "duration", time.Since(start))
	return nil
}

// InstallMissing installs all languages of langs that are not installed yet, concurrently.
// It waits for all downloads and returns the first error. Successful downloads are kept.
func (i *Installer) InstallMissing(ctx context.Context, langs []string) error {
	missing := i.store.Missing(langs)
	if len(missing) == 0 {
		return nil
	}
	i.log.Info("Installing missing language data", "langs", missing)
	var g errgroup.Group
	for _, lang := range missing {
		g.Go(func() error {
			return i.Install(ctx, lang)
		})
	}
	return g.Wait()
}

// errWriter remembers write errors so they can be told apart from read errors after io.Copy.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	n, err := ew.w.Write(p)
	if err != nil {
		ew.err = err
	}
	return n, err
}
