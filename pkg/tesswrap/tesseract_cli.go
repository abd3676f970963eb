//go:build !gosseract && !tesseract_wasm && !tesseract_lib

// This is the default implementation
package tesswrap

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

func init() {
	Backend = "cli"
	_, err := exec.LookPath("tesseract")
	if err != nil {
		Initialized = false
		return
	}
	Version = getVersion()
}

func getVersion() string {
	output, err := exec.Command("tesseract", "--version").Output()
	if err != nil {
		return ""
	}
	firstLine, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(firstLine)
}

type cliWorker struct {
	tessdataDir string
	langs       []string
	opts        Options
	mu          sync.Mutex
	terminated  bool
}

// NewWorker returns a Worker which runs the tesseract executable once per image.
func NewWorker(ctx context.Context, cfg Config) (Worker, error) {
	if !Initialized {
		return nil, fmt.Errorf("%w: executable not found in PATH", ErrNotAvailable)
	}
	dir, err := unpackAll(cfg.Data, cfg.Languages)
	if err != nil {
		return nil, err
	}
	return &cliWorker{tessdataDir: dir, langs: slices.Clone(cfg.Languages), opts: cfg.Options}, nil
}

// args returns the tesseract arguments for reading an image from stdin and writing TSV to stdout.
func (w *cliWorker) args() []string {
	args := []string{"--tessdata-dir", w.tessdataDir, "-l", strings.Join(w.langs, "+")}
	if w.opts.PageSegMode != nil {
		args = append(args, "--psm", strconv.Itoa(*w.opts.PageSegMode))
	}
	keys := make([]string, 0, len(w.opts.Variables))
	for k := range w.opts.Variables {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		args = append(args, "-c", k+"="+w.opts.Variables[k])
	}
	return append(args, "-", "-", "tsv")
}

func (w *cliWorker) Recognize(ctx context.Context, img []byte) (*Result, error) {
	w.mu.Lock()
	terminated := w.terminated
	w.mu.Unlock()
	if terminated {
		return nil, ErrTerminated
	}
	if len(img) == 0 {
		return nil, errors.New("image is empty")
	}
	start := time.Now()
	cmd := exec.CommandContext(ctx, "tesseract", w.args()...)
	cmd.Stdin = bytes.NewReader(img)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	text, words, err := parseTSV(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("parsing tesseract output: %w", err)
	}
	return &Result{
		Text:       text,
		Confidence: meanConfidence(words),
		Words:      words,
		Languages:  slices.Clone(w.langs),
		Backend:    Backend,
		Duration:   time.Since(start),
	}, nil
}

func (w *cliWorker) Terminate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.terminated = true
	return nil
}

// parseTSV rebuilds the plain text from tesseract's TSV output and collects its words.
// Lines are separated by a newline, paragraphs by an empty line.
func parseTSV(r io.Reader) (string, []Word, error) {
	const (
		colLevel = iota
		colPage
		colBlock
		colPar
		colLine
		colWord
		colLeft
		colTop
		colWidth
		colHeight
		colConf
		colText
		numCols
	)
	var (
		sb        strings.Builder
		words     []Word
		lastPar   = ""
		lastLine  = ""
		firstLine = true
	)
	scanner := bufio.NewScanner(r)
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		cols := strings.SplitN(scanner.Text(), "\t", numCols)
		if len(cols) < numCols || cols[colLevel] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[colText])
		if text == "" {
			continue
		}
		par := cols[colPage] + "/" + cols[colBlock] + "/" + cols[colPar]
		line := par + "/" + cols[colLine]
		switch {
		case firstLine:
			firstLine = false
		case par != lastPar:
			sb.WriteString("\n\n")
		case line != lastLine:
			sb.WriteString("\n")
		default:
			sb.WriteString(" ")
		}
		lastPar, lastLine = par, line
		sb.WriteString(text)

		left, _ := strconv.Atoi(cols[colLeft])
		top, _ := strconv.Atoi(cols[colTop])
		width, _ := strconv.Atoi(cols[colWidth])
		height, _ := strconv.Atoi(cols[colHeight])
		conf, _ := strconv.ParseFloat(cols[colConf], 64)
		words = append(words, Word{
			Text:       text,
			Confidence: max(conf, 0) / 100,
			Bounds:     Bounds{X1: left, Y1: top, X2: left + width, Y2: top + height},
		})
	}
	return sb.String(), words, scanner.Err()
}
