// Package server exposes the OCR service over HTTP and as a NATS micro service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/johbar/ocr-service/internal/command"
	"github.com/johbar/ocr-service/internal/imageparser"
	"github.com/johbar/ocr-service/internal/langdata"
	"github.com/johbar/ocr-service/internal/recognizer"
	"github.com/johbar/ocr-service/pkg/dehyphenator"
	"github.com/johbar/ocr-service/pkg/tesswrap"
)

type Service struct {
	installer    *langdata.Installer
	factory      *recognizer.Factory
	commands     *command.Handler
	maxImageSize uint64
	locale       string
	log          *slog.Logger
}

// New returns a Service. locale is the reply language used if a request does not ask for one.
func New(installer *langdata.Installer, factory *recognizer.Factory, commands *command.Handler, maxImageSize uint64, locale string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		installer:    installer,
		factory:      factory,
		commands:     commands,
		maxImageSize: maxImageSize,
		locale:       locale,
		log:          logger,
	}
}

// LangsResponse lists installed languages.
type LangsResponse struct {
	Langs []string `json:"langs"`
}

// InstallRequest names languages to install.
type InstallRequest struct {
	Langs []string `json:"langs" binding:"required"`
}

// RecognizeRequest is the payload of the NATS recognize endpoint.
type RecognizeRequest struct {
	Langs   []string         `json:"langs,omitempty"`
	Image   []byte           `json:"image"`
	Options tesswrap.Options `json:"options"`
	// join words hyphenated at line ends
	Dehyphenate bool `json:"dehyphenate,omitempty"`
}

// CommandRequest is the payload of the NATS command endpoint.
type CommandRequest struct {
	Text   string `json:"text"`
	Image  []byte `json:"image,omitempty"`
	Locale string `json:"locale,omitempty"`
}

// ErrorResponse is returned by HTTP endpoints on failure.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

func (s *Service) installed() LangsResponse {
	return LangsResponse{Langs: s.installer.Store().ListInstalled()}
}

// install installs a single language unconditionally, but only the missing ones of several.
func (s *Service) install(ctx context.Context, langs []string) error {
	langs = langdata.Unique(langs)
	for _, lang := range langs {
		if err := langdata.ValidateLang(lang); err != nil {
			return err
		}
	}
	if len(langs) == 1 {
		return s.installer.Install(ctx, langs[0])
	}
	return s.installer.InstallMissing(ctx, langs)
}

func (s *Service) recognize(ctx context.Context, langs []string, img []byte, opts tesswrap.Options, dehyphenate bool) (*tesswrap.Result, error) {
	doc, err := imageparser.NewFromBytes(img, s.maxImageSize)
	if err != nil {
		return nil, err
	}
	res, err := s.factory.Recognize(ctx, langs, doc.Data(), opts)
	if err != nil || !dehyphenate {
		return res, err
	}
	if res.Text, err = dehyphenator.String(res.Text, false); err != nil {
		return nil, err
	}
	return res, nil
}

// statusOf maps errors of the core packages to HTTP status codes.
func statusOf(err error) int {
	var (
		dlErr      *langdata.DownloadError
		fsErr      *langdata.FilesystemError
		missingErr *recognizer.MissingAssetsError
	)
	switch {
	case errors.Is(err, langdata.ErrInvalidLanguage):
		return http.StatusBadRequest
	case errors.Is(err, imageparser.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imageparser.ErrNotAnImage):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &missingErr), errors.Is(err, recognizer.ErrNoLanguages):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &dlErr):
		return http.StatusBadGateway
	case errors.As(err, &fsErr):
		return http.StatusInternalServerError
	case errors.Is(err, tesswrap.ErrNotAvailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusUnprocessableEntity
}

func errorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}
	var missingErr *recognizer.MissingAssetsError
	if errors.As(err, &missingErr) {
		resp.Missing = missingErr.Langs
	}
	return resp
}
