package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"go-simpler.org/env"
)

// OcrConfig represents the configuration of this service
type OcrConfig struct {
	// Add source info to log statements. Default: false
	Debug bool `env:"OCR_DEBUG" default:"false"`
	// Base directory for persistent data. Default: data
	DataDir string `env:"OCR_DATA_DIR" default:"data" validate:"required"`
	// Directory holding the language data files. Relative paths are resolved against DataDir
	LangDataDir string `env:"OCR_LANGDATA_DIR" default:"langdata" validate:"required"`
	// URL template language data is downloaded from. {lang} and {file} are replaced
	// by the language code and the asset file name.
	LangDataSource string `env:"OCR_LANGDATA_SOURCE" default:"https://cdn.jsdelivr.net/npm/@tesseract.js-data/{lang}/4.0.0_best_int/{file}" validate:"required,langtemplate"`
	// Timeout of a single language data download in milliseconds. Default: 30000
	DownloadTimeoutMs int `env:"OCR_DOWNLOAD_TIMEOUT_MS" default:"30000" validate:"gt=0"`
	// Name of a NATS object store bucket to install language data from instead of LangDataSource
	AssetBucket string `env:"OCR_ASSET_BUCKET"`
	// Disable Accept-Encoding=gzip header in outgoing HTTP Requests
	HttpClientDisableCompression bool `env:"OCR_HTTP_CLIENT_DISABLE_COMPRESSION" default:"false"`
	// Log level (DEBUG, INFO, WARN, ERROR)
	LogLevelStr string `env:"OCR_LOG_LEVEL" default:"INFO"`
	LogLevel    slog.Level
	// Maximum size of an image submitted for recognition
	MaxImageSize      string `env:"OCR_MAX_IMAGE_SIZE" default:"20MiB"`
	MaxImageSizeBytes uint64
	// Locale of chat replies, unless a request asks for another one. Default: en
	Locale string `env:"OCR_LOCALE" default:"en"`
	// Tesseract page segmentation mode used unless a request overrides it. 3 is fully automatic
	PageSegMode int `env:"OCR_PAGE_SEG_MODE" default:"3" validate:"gte=0,lte=13"`
	// wether to start an embedded NATS server instead of connecting to NatsUrl
	EmbedNats bool `env:"OCR_EMBED_NATS" default:"false"`
	// wether to expose embedded NATS server to other clients. Default: false
	ExposeNats bool `env:"OCR_EXPOSE_NATS" default:"false"`
	// embedded NATS server storage location
	NatsStoreDir string `env:"OCR_NATS_STORE_DIR"`
	// embedded NATS server host/ip address, if exposed. Default: localhost
	NatsHost string `env:"OCR_NATS_HOST" default:"localhost"`
	// embedded NATS server port, if exposed. Default: 4222
	NatsPort int `env:"OCR_NATS_PORT" default:"4222"`
	// External NATS URL, e.g. nats://localhost:4222
	NatsUrl string `env:"OCR_NATS_URL"`
	// Timeout for the external NATS connection
	NatsTimeout time.Duration `env:"OCR_NATS_TIMEOUT" default:"15s"`
	// NatsConnectRetries is the number of attempts to connect to external NATS server(s)
	NatsConnectRetries int `env:"OCR_NATS_CONNECT_RETRIES" default:"10"`
	// if true, disable HTTP Server in favor of NATS Microservice interface
	NoHttp bool `env:"OCR_NO_HTTP" default:"false"`
	// HTTP listen address and/or port. Default: ':8080'
	SrvAddr string `env:"OCR_HOST_PORT" default:":8080"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// a template without any placeholder would download the same file for every language
	_ = v.RegisterValidation("langtemplate", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.Contains(s, "{lang}") || strings.Contains(s, "{file}")
	})
	return v
}

// NewOcrConfigFromEnv returns a service config object
// populated with defaults and values from environment vars
func NewOcrConfigFromEnv() (*OcrConfig, error) {
	var cfg OcrConfig
	if err := env.Load(&cfg, nil); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(cfg.LogLevelStr)); err != nil {
		return nil, fmt.Errorf("parsing log level from env: %w", err)
	}
	maxSize, err := humanize.ParseBytes(cfg.MaxImageSize)
	if err != nil {
		return nil, fmt.Errorf("parsing max image size from env: %w", err)
	}
	cfg.MaxImageSizeBytes = maxSize
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for values the service can not work with.
func (c *OcrConfig) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		errs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("config %s: failed on rule '%s' with value '%v'", fe.Field(), fe.Tag(), fe.Value()))
		}
		return errors.Join(errs...)
	}
	return err
}

// LangDataPath returns the asset root. A relative LangDataDir is resolved against DataDir.
func (c *OcrConfig) LangDataPath() string {
	if filepath.IsAbs(c.LangDataDir) {
		return c.LangDataDir
	}
	return filepath.Join(c.DataDir, c.LangDataDir)
}

// DownloadTimeout returns DownloadTimeoutMs as a time.Duration.
func (c *OcrConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutMs) * time.Millisecond
}
