package server

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
)

const (
	serviceName = "ocr"
	queueGroup  = "ocr-service"
)

// RegisterNatsService adds the micro service "ocr" with the endpoints
// ocr.langs, ocr.install, ocr.recognize and ocr.command. All of them take and return JSON.
// Errors are reported with the HTTP status code the HTTP API would use.
func (s *Service) RegisterNatsService(nc *nats.Conn) (micro.Service, error) {
	svc, err := micro.AddService(nc, micro.Config{
		Name:        serviceName,
		Version:     "1.0.0",
		Description: "Installs Tesseract language data and recognizes text in images",
	})
	if err != nil {
		return nil, err
	}
	g := svc.AddGroup(serviceName)
	endpoints := []struct {
		name    string
		handler micro.HandlerFunc
	}{
		{"langs", s.handleLangs},
		{"install", s.handleInstall},
		{"recognize", s.handleRecognize},
		{"command", s.handleCommand},
	}
	for _, e := range endpoints {
		if err := g.AddEndpoint(e.name, e.handler, micro.WithEndpointQueueGroup(queueGroup)); err != nil {
			svc.Stop()
			return nil, err
		}
	}
	return svc, nil
}

func (s *Service) handleLangs(req micro.Request) {
	s.respondJSON(req, s.installed())
}

func (s *Service) handleInstall(req micro.Request) {
	var params InstallRequest
	if err := json.Unmarshal(req.Data(), &params); err != nil {
		req.Error("400", "invalid_params: "+err.Error(), nil)
		return
	}
	if len(params.Langs) == 0 {
		req.Error("400", "invalid_params: no languages given", nil)
		return
	}
	s.log.Info("Received NATS request", "endpoint", "install", "langs", params.Langs)
	if err := s.install(context.Background(), params.Langs); err != nil {
		s.respondError(req, err)
		return
	}
	s.respondJSON(req, s.installed())
}

func (s *Service) handleRecognize(req micro.Request) {
	var params RecognizeRequest
	if err := json.Unmarshal(req.Data(), &params); err != nil {
		req.Error("400", "invalid_params: "+err.Error(), nil)
		return
	}
	s.log.Info("Received NATS request", "endpoint", "recognize", "langs", params.Langs, "size", len(params.Image))
	res, err := s.recognize(context.Background(), params.Langs, params.Image, params.Options, params.Dehyphenate)
	if err != nil {
		s.respondError(req, err)
		return
	}
	s.respondJSON(req, res)
}

func (s *Service) handleCommand(req micro.Request) {
	var params CommandRequest
	if err := json.Unmarshal(req.Data(), &params); err != nil {
		req.Error("400", "invalid_params: "+err.Error(), nil)
		return
	}
	s.log.Info("Received NATS request", "endpoint", "command", "text", params.Text)
	reply := s.commands.ExecuteText(context.Background(), params.Text, params.Image, params.Locale, s.locale)
	s.respondJSON(req, reply)
}

func (s *Service) respondJSON(req micro.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		req.Error("500", err.Error(), nil)
		return
	}
	if err := req.Respond(data, micro.WithHeaders(micro.Headers{"Content-Type": []string{"application/json"}})); err != nil {
		s.log.Error("Responding to NATS request failed", "subject", req.Subject(), "err", err)
	}
}

func (s *Service) respondError(req micro.Request, err error) {
	s.log.Warn("NATS request failed", "subject", req.Subject(), "err", err)
	data, merr := json.Marshal(errorResponse(err))
	if merr != nil {
		data = nil
	}
	if rerr := req.Error(strconv.Itoa(statusOf(err)), err.Error(), data); rerr != nil && !errors.Is(rerr, nats.ErrConnectionClosed) {
		s.log.Error("Responding to NATS request failed", "subject", req.Subject(), "err", rerr)
	}
}
