// Package command implements the chat commands of the OCR bot on top of the
// language data installer and the worker factory. Transports (HTTP, NATS, CLI)
// only hand over the message text and an optional image.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

type Kind int

const (
	// Recognize text in the attached image
	Recognize Kind = iota
	// List installed languages
	List
	// Install language data
	Install
	// Help prints the usage
	Help
)

func (k Kind) String() string {
	switch k {
	case Recognize:
		return "recognize"
	case List:
		return "langs"
	case Install:
		return "install"
	case Help:
		return "help"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is a parsed chat message.
type Command struct {
	Kind  Kind
	Langs []string
	// emit the structured recognition result in addition to the text
	Debug bool
	// join words hyphenated at line ends
	Dehyphenate bool
}

var ErrNotACommand = errors.New("not an ocr command")

// /ocr or /ocr@SomeBot, followed by arguments
var commandRe = regexp2.MustCompile(`^\s*/ocr(?:@\w+)?(?:\s+(?<args>.*?))?\s*$`, regexp2.IgnoreCase|regexp2.Singleline)

// Parse parses messages like
//
//	/ocr                  recognize with the first installed language
//	/ocr eng+deu -d       recognize with English and German, print diagnostics
//	/ocr deu -j           recognize German, join hyphenated words
//	/ocr langs            list installed languages
//	/ocr install chi_sim  install language data
func Parse(text string) (Command, error) {
	m, err := commandRe.FindStringMatch(text)
	if err != nil {
		return Command{}, err
	}
	if m == nil {
		return Command{}, ErrNotACommand
	}
	var args []string
	if g := m.GroupByName("args"); g != nil {
		args = strings.Fields(g.String())
	}
	cmd := Command{Kind: Recognize}
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "langs", "list":
			return Command{Kind: List}, nil
		case "help":
			return Command{Kind: Help}, nil
		case "install":
			cmd.Kind = Install
			args = args[1:]
		}
	}
	for _, arg := range args {
		switch arg {
		case "-d", "--debug":
			cmd.Debug = true
			continue
		case "-j", "--dehyphenate":
			cmd.Dehyphenate = true
			continue
		}
		cmd.Langs = append(cmd.Langs, SplitLangs(arg)...)
	}
	if cmd.Kind == Install && len(cmd.Langs) == 0 {
		return Command{Kind: Help}, nil
	}
	return cmd, nil
}

// SplitLangs splits "eng+deu", "eng,deu" into codes, dropping empty ones.
func SplitLangs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
}
