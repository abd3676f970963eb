// Package natsconn connects the service to NATS, either to an external server
// or to one embedded in the process.
package natsconn

import (
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/johbar/ocr-service/internal/config"
)

// ErrNotConfigured is returned if neither an embedded server nor a NATS URL is configured.
var ErrNotConfigured = errors.New("NATS is not configured")

// Connect returns a connection according to conf. If an embedded server is started,
// it is shut down when the returned connection is closed.
func Connect(conf *config.OcrConfig, log *slog.Logger) (*nats.Conn, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	switch {
	case conf.EmbedNats:
		ns, err := StartEmbeddedServer(conf)
		if err != nil {
			return nil, err
		}
		log.Info("Embedded NATS server started", "exposed", conf.ExposeNats, "storeDir", conf.NatsStoreDir)
		nc, err := nats.Connect("", nats.InProcessServer(ns), nats.Name("ocr-service"),
			nats.ClosedHandler(func(_ *nats.Conn) { ns.Shutdown() }))
		if err != nil {
			ns.Shutdown()
			return nil, err
		}
		return nc, nil
	case conf.NatsUrl != "":
		return SetupNatsConnection(conf, log)
	}
	return nil, ErrNotConfigured
}

// StartEmbeddedServer starts a NATS server with JetStream enabled. It only accepts
// in-process connections unless conf.ExposeNats is set.
func StartEmbeddedServer(conf *config.OcrConfig) (*server.Server, error) {
	ns, err := server.NewServer(
		&server.Options{
			ServerName: "ocr-service",
			JetStream:  true,
			TLS:        false,
			DontListen: !conf.ExposeNats,
			Host:       conf.NatsHost,
			Port:       conf.NatsPort,
			StoreDir:   conf.NatsStoreDir,
			NoSigs:     true,
		})
	if err != nil {
		return nil, err
	}
	ns.ConfigureLogger()
	ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS not ready")
	}
	return ns, nil
}

// SetupNatsConnection connects to conf.NatsUrl, retrying once a second
// up to conf.NatsConnectRetries times.
func SetupNatsConnection(conf *config.OcrConfig, log *slog.Logger) (*nats.Conn, error) {
	var attempts int
	log.Info("Try connecting to NATS", "url", conf.NatsUrl, "timeoutSecs", conf.NatsTimeout.Seconds())
	for {
		attempts++
		nc, err := nats.Connect(conf.NatsUrl, nats.Name("ocr-service"), nats.Timeout(conf.NatsTimeout))
		if err == nil {
			return nc, nil
		}
		log.Error("Connecting to NATS failed",
			"url", conf.NatsUrl,
			"timeoutSecs", conf.NatsTimeout.Seconds(),
			"err", err,
			"count", attempts,
			"maxRetries", conf.NatsConnectRetries)
		if attempts > conf.NatsConnectRetries {
			log.Error("Connecting to NATS failed. Retry count exceeded", "err", err, "maxRetries", conf.NatsConnectRetries)
			return nil, err
		}
		time.Sleep(time.Second)
	}
}
