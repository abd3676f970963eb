package command

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// message keys
const (
	msgUsage          = "usage"
	msgInstalled      = "Installed languages: %s"
	msgNoneInstalled  = "No language data installed. Install some with /ocr install <code>."
	msgInstallDone    = "Installed %d language(s): %s"
	msgInstallFailed  = "Installing %s failed: %v"
	msgDownloadFailed = "Downloading %s failed: %v"
	msgDownloadStatus = "Downloading %s failed: the server responded with status %d"
	msgStorageFailed  = "Language data could not be stored: %v"
	msgInvalidLang    = "Invalid language code: %s"
	msgMissing        = "Language data not installed: %s. Install it with /ocr install %s"
	msgNoImage        = "Please attach an image."
	msgBadImage       = "The attachment can not be read: %v"
	msgNoText         = "No text found."
	msgOcrFailed      = "Text recognition failed: %v"
)

const usageEn = `Usage:
/ocr [codes] [-d|--debug] [-j|--dehyphenate]
                           recognize text in the attached image
/ocr langs                 list installed languages
/ocr install <codes>       install language data
Codes are separated by spaces or '+', e.g. eng+deu.`

const usageDe = `Verwendung:
/ocr [Codes] [-d|--debug] [-j|--dehyphenate]
                           Text im angehängten Bild erkennen
/ocr langs                 installierte Sprachen anzeigen
/ocr install <Codes>       Sprachdaten installieren
Codes werden durch Leerzeichen oder '+' getrennt, z.B. eng+deu.`

var supported = []language.Tag{language.English, language.German}

var matcher = language.NewMatcher(supported)

var messages = newCatalog()

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key string, msg ...catalog.Message) {
		if err := b.Set(tag, key, msg...); err != nil {
			panic(err)
		}
	}
	str := func(tag language.Tag, key, msg string) {
		set(tag, key, catalog.String(msg))
	}

	str(language.English, msgUsage, usageEn)
	str(language.German, msgUsage, usageDe)

	set(language.English, msgInstallDone, plural.Selectf(1, "%d",
		plural.One, "Installed %[1]d language: %[2]s",
		plural.Other, "Installed %[1]d languages: %[2]s"))
	set(language.German, msgInstallDone, plural.Selectf(1, "%d",
		plural.One, "%[1]d Sprache installiert: %[2]s",
		plural.Other, "%[1]d Sprachen installiert: %[2]s"))

	str(language.German, msgInstalled, "Installierte Sprachen: %s")
	str(language.German, msgNoneInstalled, "Keine Sprachdaten installiert. Mit /ocr install <Code> installieren.")
	str(language.German, msgInstallFailed, "Installation von %s fehlgeschlagen: %v")
	str(language.German, msgDownloadFailed, "Download von %s fehlgeschlagen: %v")
	str(language.German, msgDownloadStatus, "Download von %s fehlgeschlagen: der Server antwortete mit Status %d")
	str(language.German, msgStorageFailed, "Sprachdaten konnten nicht gespeichert werden: %v")
	str(language.German, msgInvalidLang, "Ungültiger Sprachcode: %s")
	str(language.German, msgMissing, "Sprachdaten nicht installiert: %s. Installieren mit /ocr install %s")
	str(language.German, msgNoImage, "Bitte ein Bild anhängen.")
	str(language.German, msgBadImage, "Der Anhang kann nicht gelesen werden: %v")
	str(language.German, msgNoText, "Kein Text gefunden.")
	str(language.German, msgOcrFailed, "Texterkennung fehlgeschlagen: %v")
	return b
}

// Printer returns a printer for the best supported match of the given locales,
// e.g. "de-AT" or an Accept-Language header value.
func Printer(locales ...string) *message.Printer {
	var tags []language.Tag
	for _, l := range locales {
		if l == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(l)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	_, idx, _ := matcher.Match(tags...)
	return message.NewPrinter(supported[idx], message.Catalog(messages))
}
