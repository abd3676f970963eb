package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"golang.org/x/text/message"

	"github.com/johbar/ocr-service/internal/imageparser"
	"github.com/johbar/ocr-service/internal/langdata"
	"github.com/johbar/ocr-service/internal/recognizer"
	"github.com/johbar/ocr-service/pkg/dehyphenator"
	"github.com/johbar/ocr-service/pkg/tesswrap"
)

// Reply is the answer to a command, ready to be sent to the user.
type Reply struct {
	Text string `json:"text"`
	// indented JSON of the recognition result, only set in debug mode
	Diagnostics string `json:"diagnostics,omitempty"`
	// Failed is set if the command could not be carried out. Text explains why.
	Failed bool `json:"failed,omitempty"`
}

type Handler struct {
	installer    *langdata.Installer
	factory      *recognizer.Factory
	maxImageSize uint64
	log          *slog.Logger
}

func NewHandler(installer *langdata.Installer, factory *recognizer.Factory, maxImageSize uint64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{installer: installer, factory: factory, maxImageSize: maxImageSize, log: logger}
}

// ExecuteText parses text and executes it. Messages that are not commands get the usage as reply.
func (h *Handler) ExecuteText(ctx context.Context, text string, img []byte, locales ...string) Reply {
	cmd, err := Parse(text)
	if err != nil {
		h.log.Debug("Not a command", "text", text, "err", err)
		cmd = Command{Kind: Help}
	}
	return h.Execute(ctx, cmd, img, locales...)
}

// Execute runs cmd and renders the reply in the best matching locale.
// img is only used for recognition.
func (h *Handler) Execute(ctx context.Context, cmd Command, img []byte, locales ...string) Reply {
	p := Printer(locales...)
	h.log.Info("Executing command", "cmd", cmd.Kind, "langs", cmd.Langs, "debug", cmd.Debug)
	switch cmd.Kind {
	case List:
		return h.list(p)
	case Install:
		return h.install(ctx, p, cmd.Langs)
	case Recognize:
		return h.recognize(ctx, p, cmd, img)
	default:
		return Reply{Text: p.Sprintf(msgUsage)}
	}
}

func (h *Handler) list(p *message.Printer) Reply {
	langs := h.installer.Store().ListInstalled()
	if len(langs) == 0 {
		return Reply{Text: p.Sprintf(msgNoneInstalled)}
	}
	return Reply{Text: p.Sprintf(msgInstalled, strings.Join(langs, ", "))}
}

// install replaces the asset of a single language, but only fetches the missing ones of several.
func (h *Handler) install(ctx context.Context, p *message.Printer, langs []string) Reply {
	for _, lang := range langs {
		if err := langdata.ValidateLang(lang); err != nil {
			return h.failure(p, langs, err, true)
		}
	}
	var err error
	if len(langs) == 1 {
		err = h.installer.Install(ctx, langs[0])
	} else {
		err = h.installer.InstallMissing(ctx, langs)
	}
	if err != nil {
		return h.failure(p, langs, err, true)
	}
	return Reply{Text: p.Sprintf(msgInstallDone, len(langs), strings.Join(langs, ", "))}
}

func (h *Handler) recognize(ctx context.Context, p *message.Printer, cmd Command, img []byte) Reply {
	if len(img) == 0 {
		return Reply{Text: p.Sprintf(msgNoImage), Failed: true}
	}
	doc, err := imageparser.NewFromBytes(img, h.maxImageSize)
	if err != nil {
		return Reply{Text: p.Sprintf(msgBadImage, err), Failed: true}
	}
	res, err := h.factory.Recognize(ctx, cmd.Langs, doc.Data(), tesswrap.Options{})
	if err != nil {
		return h.failure(p, cmd.Langs, err, false)
	}
	if cmd.Dehyphenate {
		if res.Text, err = dehyphenator.String(res.Text, false); err != nil {
			return h.failure(p, cmd.Langs, err, false)
		}
	}
	res.Text = strings.TrimSpace(res.Text)
	reply := Reply{Text: res.Text}
	if reply.Text == "" {
		reply.Text = p.Sprintf(msgNoText)
	}
	if cmd.Debug {
		diag, err := Diagnostics(res)
		if err != nil {
			h.log.Error("Could not render diagnostics", "err", err)
		}
		reply.Diagnostics = diag
	}
	return reply
}

// Diagnostics renders res as indented JSON.
func Diagnostics(res *tesswrap.Result) (string, error) {
	b, err := json.Marshal(res, jsontext.WithIndent("  "))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// failure turns errors of the core packages into a user facing reply.
func (h *Handler) failure(p *message.Printer, langs []string, err error, installing bool) Reply {
	h.log.Warn("Command failed", "langs", langs, "err", err)
	var (
		dlErr      *langdata.DownloadError
		fsErr      *langdata.FilesystemError
		missingErr *recognizer.MissingAssetsError
		text       string
	)
	switch {
	case errors.As(err, &missingErr):
		text = p.Sprintf(msgMissing, strings.Join(missingErr.Langs, ", "), strings.Join(missingErr.Langs, " "))
	case errors.Is(err, recognizer.ErrNoLanguages):
		text = p.Sprintf(msgNoneInstalled)
	case errors.Is(err, langdata.ErrInvalidLanguage):
		text = p.Sprintf(msgInvalidLang, strings.Join(langs, ", "))
	case errors.As(err, &dlErr) && dlErr.StatusCode != 0:
		text = p.Sprintf(msgDownloadStatus, dlErr.Lang, dlErr.StatusCode)
	case errors.As(err, &dlErr):
		text = p.Sprintf(msgDownloadFailed, dlErr.Lang, dlErr.Err)
	case errors.As(err, &fsErr):
		text = p.Sprintf(msgStorageFailed, fsErr)
	case installing:
		text = p.Sprintf(msgInstallFailed, strings.Join(langs, ", "), err)
	default:
		text = p.Sprintf(msgOcrFailed, err)
	}
	return Reply{Text: text, Failed: true}
}
