package langdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// Source fetches the compressed asset of a language.
// Errors returned by Fetch are *DownloadError.
type Source interface {
	Fetch(ctx context.Context, lang string) (io.ReadCloser, error)
	// Location describes where lang's asset is fetched from, for logging
	Location(lang string) string
}

// HTTPSource downloads assets from a URL template containing {lang} and/or {file}.
type HTTPSource struct {
	template string
	client   *http.Client
}

func NewHTTPSource(template string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{template: template, client: client}
}

// NewHTTPClient returns a client for asset downloads. Timeouts are applied per request.
func NewHTTPClient(disableCompression bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = disableCompression
	return &http.Client{Transport: transport}
}

// URL returns the template with {lang} and {file} substituted.
func (s *HTTPSource) URL(lang string) string {
	return strings.NewReplacer("{lang}", lang, "{file}", FileName(lang)).Replace(s.template)
}

func (s *HTTPSource) Location(lang string) string {
	return s.URL(lang)
}

func (s *HTTPSource) Fetch(ctx context.Context, lang string) (io.ReadCloser, error) {
	url := s.URL(lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{Lang: lang, URL: url, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &DownloadError{Lang: lang, URL: url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &DownloadError{Lang: lang, URL: url, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	return resp.Body, nil
}

// ObjectStoreSource fetches assets from a NATS object store bucket.
// Objects are named like asset files.
type ObjectStoreSource struct {
	bucket string
	obj    jetstream.ObjectStore
}

// NewObjectStoreSource opens the bucket, creating it if it does not exist.
func NewObjectStoreSource(ctx context.Context, js jetstream.JetStream, bucket string) (*ObjectStoreSource, error) {
	obj, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Tesseract language data",
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing NATS object store %s: %w", bucket, err)
	}
	return &ObjectStoreSource{bucket: bucket, obj: obj}, nil
}

func (s *ObjectStoreSource) Location(lang string) string {
	return "nats://" + s.bucket + "/" + FileName(lang)
}

func (s *ObjectStoreSource) Fetch(ctx context.Context, lang string) (io.ReadCloser, error) {
	res, err := s.obj.Get(ctx, FileName(lang))
	if err != nil {
		return nil, &DownloadError{Lang: lang, URL: s.Location(lang), Err: err}
	}
	return res, nil
}

// Publish uploads lang's installed asset from store to the bucket,
// so that other instances can install it from there.
func (s *ObjectStoreSource) Publish(ctx context.Context, store *Store, lang string) (*jetstream.ObjectInfo, error) {
	r, err := store.Open(lang)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	info, err := s.obj.Put(ctx, jetstream.ObjectMeta{Name: FileName(lang), Description: "language data " + lang}, r)
	if err != nil {
		return nil, fmt.Errorf("publishing %s to %s: %w", lang, s.Location(lang), err)
	}
	return info, nil
}
