package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/johbar/ocr-service/internal/command"
	"github.com/johbar/ocr-service/internal/imageparser"
	"github.com/johbar/ocr-service/pkg/tesswrap"
)

const usage = `Usage:
  ocr-service                                  start the service
  ocr-service langs                            list installed languages
  ocr-service install <code>...                install language data
  ocr-service recognize [-l codes] [-psm n] [-d] <file|->
                                               print the text of an image, '-' reads stdin
  ocr-service publish <code>...                upload installed language data to OCR_ASSET_BUCKET
`

// RunOneShot runs the command given by args, prints the result to stdout and returns the exit code.
func RunOneShot(ctx context.Context, a *app, args []string, stdout io.Writer) int {
	switch args[0] {
	case "install", "publish":
		if len(args) < 2 {
			fmt.Fprint(stdout, usage)
			return 2
		}
	}
	var err error
	switch args[0] {
	case "langs":
		var langs []string
		if langs, err = a.store.ListInstalledErr(); err == nil {
			for _, lang := range langs {
				fmt.Fprintln(stdout, lang)
			}
		}
	case "install":
		langs := args[1:]
		if len(langs) == 1 {
			err = a.installer.Install(ctx, langs[0])
		} else {
			err = a.installer.InstallMissing(ctx, langs)
		}
	case "recognize":
		err = recognize(ctx, a, args[1:], stdout)
	case "publish":
		err = publish(ctx, a, args[1:], stdout)
	default:
		fmt.Fprint(stdout, usage)
		return 2
	}
	if err != nil {
		logger.Error("Command failed", "cmd", args[0], "err", err)
		return 1
	}
	return 0
}

func recognize(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("recognize", flag.ContinueOnError)
	langs := fs.String("l", "", "language codes separated by '+', default: first installed language")
	psm := fs.Int("psm", -1, "page segmentation mode")
	debug := fs.Bool("d", false, "print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one image, got %d arguments", fs.NArg())
	}
	doc, err := imageparser.Open(fs.Arg(0), a.conf.MaxImageSizeBytes)
	if err != nil {
		return err
	}
	logger.Debug("Image loaded", "type", doc.MimeType(), "meta", doc.MetadataMap())
	var opts tesswrap.Options
	if *psm >= 0 {
		opts.PageSegMode = tesswrap.PSM(*psm)
	}
	res, err := a.factory.Recognize(ctx, command.SplitLangs(*langs), doc.Data(), opts)
	if err != nil {
		return err
	}
	if *debug {
		diag, err := command.Diagnostics(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, diag)
		return err
	}
	_, err = fmt.Fprintln(stdout, strings.TrimSpace(res.Text))
	return err
}

func publish(ctx context.Context, a *app, langs []string, stdout io.Writer) error {
	if a.objects == nil {
		return errors.New("publishing requires OCR_ASSET_BUCKET and a NATS connection")
	}
	for _, lang := range langs {
		info, err := a.objects.Publish(ctx, a.store, lang)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", info.Name, humanize.Bytes(info.Size), info.Digest)
	}
	return nil
}
