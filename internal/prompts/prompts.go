// Package prompts builds the system/user prompt pair sent to the
// response model. Responses are spoken aloud, so the instructions steer
// the model toward short plain-text answers in the caller's language.
package prompts

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Options selects the business context injected into the system prompt.
// When KnowledgeFile is set its contents replace the static profile.
type Options struct {
	CompanyName    string
	CompanyProfile string
	KnowledgeFile  string
}

// Builder renders prompts from a fixed set of options.
type Builder struct {
	opts Options
	now  func() time.Time
}

// NewBuilder constructs a Builder. The clock is injectable for tests.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts, now: time.Now}
}

// System returns the voice-assistant system prompt with business context
// resolved from the knowledge file or the static company profile.
func (b *Builder) System() (string, error) {
	context := strings.TrimSpace(b.opts.CompanyProfile)
	if b.opts.KnowledgeFile != "" {
		data, err := os.ReadFile(b.opts.KnowledgeFile)
		if err != nil {
			return "", fmt.Errorf("read knowledge file: %w", err)
		}
		context = strings.TrimSpace(string(data))
	}

	name := b.opts.CompanyName
	if name == "" {
		name = "the company"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional voice assistant for %s. Your responses will be converted directly to speech, so follow these guidelines:\n\n", name)
	sb.WriteString("- Provide concise, direct answers without explanations of your thought process\n")
	sb.WriteString("- Never use markdown, formatting, lists, or bullet points\n")
	sb.WriteString("- Don't acknowledge that you're an AI or mention text-based interactions\n")
	sb.WriteString("- Keep responses conversational, brief, and appropriate for spoken dialogue\n")
	sb.WriteString("- Never include phrases like 'here's information about...' or 'I'd be happy to help with...'\n\n")
	sb.WriteString("IMPORTANT - Transcription Context:\n")
	sb.WriteString("- The text you receive comes from speech-to-text transcription and may contain errors\n")
	sb.WriteString("- Infer the actual meaning based on context even if words are misspelled or unclear\n")
	sb.WriteString("- Do not mention or correct transcription errors in your response\n\n")
	if context != "" {
		sb.WriteString("Here's the context you should answer with:\n\n")
		sb.WriteString(context)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Today's Date: %s\n\n", b.now().Format("2006-01-02"))
	sb.WriteString("Answer questions directly using a natural speaking style. Keep the answer as short as possible, ideally under 20 words, with no filler words or extra explanations.")
	return sb.String(), nil
}

// User wraps the transcribed question with response-style instructions.
func (b *Builder) User(question string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Customer Question: %s\n\n", strings.TrimSpace(question))
	sb.WriteString("Respond directly to this question using only plain text. ")
	sb.WriteString("Keep your answer concise and conversational as it will be converted to speech. ")
	sb.WriteString("No introductory phrases, explanations, or acknowledgments. ")
	sb.WriteString("Respond in the same language as the question.")
	return sb.String()
}
