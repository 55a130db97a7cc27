// Package langid classifies text by writing system so downstream
// components can pick language-specific voices and prompts. The
// heuristic is deliberately simple: any Arabic-script code point makes
// the whole text Arabic, everything else falls back to the default.
package langid

// Script identifies the writing system detected in a piece of text.
type Script string

const (
	ScriptArabic  Script = "arabic"
	ScriptDefault Script = "default"
)

// Detect returns the script classification for text. It is a pure
// function of its input and must stay that way; voice selection, prompt
// selection, and transcription language all key off this one result.
func Detect(text string) Script {
	for _, r := range text {
		if isArabic(r) {
			return ScriptArabic
		}
	}
	return ScriptDefault
}

func isArabic(r rune) bool {
	switch {
	case r >= 0x0600 && r <= 0x06FF: // Arabic
		return true
	case r >= 0x0750 && r <= 0x077F: // Arabic Supplement
		return true
	case r >= 0x08A0 && r <= 0x08FF: // Arabic Extended-A
		return true
	case r >= 0xFB50 && r <= 0xFDFF: // Presentation Forms-A
		return true
	case r >= 0xFE70 && r <= 0xFEFF: // Presentation Forms-B
		return true
	}
	return false
}
