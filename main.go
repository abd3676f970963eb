package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/johbar/ocr-service/internal/command"
	"github.com/johbar/ocr-service/internal/config"
	"github.com/johbar/ocr-service/internal/langdata"
	"github.com/johbar/ocr-service/internal/natsconn"
	"github.com/johbar/ocr-service/internal/recognizer"
	"github.com/johbar/ocr-service/internal/server"
	"github.com/johbar/ocr-service/pkg/tesswrap"
)

var logger *slog.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))

func newLogger(conf *config.OcrConfig, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: conf.LogLevel, AddSource: conf.Debug}))
}

// app holds the components shared by server and one shot mode.
type app struct {
	conf      *config.OcrConfig
	store     *langdata.Store
	installer *langdata.Installer
	factory   *recognizer.Factory
	commands  *command.Handler
	// objects is nil unless language data is installed from a NATS object store
	objects *langdata.ObjectStoreSource
	nc      *nats.Conn
}

func newApp(ctx context.Context, conf *config.OcrConfig, log *slog.Logger) (*app, error) {
	a := &app{conf: conf, store: langdata.NewStore(conf.LangDataPath(), log)}
	if conf.EmbedNats || conf.NatsUrl != "" {
		nc, err := natsconn.Connect(conf, log)
		if err != nil {
			return nil, err
		}
		a.nc = nc
	}

	var source langdata.Source
	if conf.AssetBucket != "" {
		if a.nc == nil {
			return nil, errors.New("OCR_ASSET_BUCKET requires a NATS connection")
		}
		js, err := jetstream.New(a.nc)
		if err != nil {
			a.close()
			return nil, err
		}
		a.objects, err = langdata.NewObjectStoreSource(ctx, js, conf.AssetBucket)
		if err != nil {
			a.close()
			return nil, err
		}
		source = a.objects
	} else {
		source = langdata.NewHTTPSource(conf.LangDataSource, langdata.NewHTTPClient(conf.HttpClientDisableCompression))
	}

	a.installer = langdata.NewInstaller(a.store, source, conf.DownloadTimeout(), log)
	a.factory = recognizer.New(a.store, tesswrap.Options{PageSegMode: tesswrap.PSM(conf.PageSegMode)}, nil, log)
	a.commands = command.NewHandler(a.installer, a.factory, conf.MaxImageSizeBytes, log)
	return a, nil
}

func (a *app) close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.nc.Close()
		}
	}
}

func main() {
	conf, err := config.NewOcrConfigFromEnv()
	if err != nil {
		logger.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// one shot mode: don't start a server, just run the command given on the command line
	if len(os.Args) > 1 {
		logger = newLogger(conf, os.Stderr)
		a, err := newApp(ctx, conf, logger)
		if err != nil {
			logger.Error("Initialization failed", "err", err)
			os.Exit(1)
		}
		code := RunOneShot(ctx, a, os.Args[1:], os.Stdout)
		a.close()
		os.Exit(code)
	}

	logger = newLogger(conf, os.Stdout)
	if os.Getenv("GOMEMLIMIT") != "" {
		logger.Info("GOMEMLIMIT", "Bytes", debug.SetMemoryLimit(-1), "MBytes", debug.SetMemoryLimit(-1)/1024/1024)
	}
	buildinfo, _ := debug.ReadBuildInfo()
	logger.Debug("Info", "buildinfo", buildinfo)

	a, err := newApp(ctx, conf, logger)
	if err != nil {
		logger.Error("Initialization failed", "err", err)
		os.Exit(1)
	}
	defer a.close()
	if !tesswrap.Initialized {
		logger.Warn("Tesseract is not available! Text recognition will fail.", "backend", tesswrap.Backend)
	} else {
		logger.Info("Using Tesseract", "backend", tesswrap.Backend, "version", tesswrap.Version)
	}
	logger.Info("Language data", "dir", a.store.Root(), "installed", a.store.ListInstalled())

	svc := server.New(a.installer, a.factory, a.commands, conf.MaxImageSizeBytes, conf.Locale, logger)
	if a.nc != nil {
		if _, err := svc.RegisterNatsService(a.nc); err != nil {
			logger.Error("Registering NATS micro service failed", "err", err)
			os.Exit(1)
		}
	}

	if conf.NoHttp {
		if a.nc == nil {
			logger.Error("Fatal: NATS not connected and HTTP disabled.")
			os.Exit(1)
		}
		logger.Info("Service started with no HTTP endpoints. Waiting for interrupt.")
		<-ctx.Done()
		return
	}

	srv := &http.Server{Addr: conf.SrvAddr, Handler: svc.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutting down HTTP server failed", "err", err)
		}
	}()
	logger.Info("Service started", "address", srv.Addr)
	defer logger.Info("HTTP Server stopped.")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		// Error starting or closing listener:
		logger.Error("Webserver failed", "err", err)
	}
}
