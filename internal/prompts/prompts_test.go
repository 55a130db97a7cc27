package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSystemUsesStaticProfile(t *testing.T) {
	b := NewBuilder(Options{
		CompanyName:    "Acme Support",
		CompanyProfile: "Acme sells industrial widgets across the Gulf region.",
	})
	prompt, err := b.System()
	if err != nil {
		t.Fatalf("System: %v", err)
	}
	if !strings.Contains(prompt, "Acme Support") {
		t.Fatal("system prompt missing company name")
	}
	if !strings.Contains(prompt, "industrial widgets") {
		t.Fatal("system prompt missing profile context")
	}
	if !strings.Contains(prompt, "Today's Date:") {
		t.Fatal("system prompt missing date line")
	}
}

func TestSystemPrefersKnowledgeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.txt")
	if err := os.WriteFile(path, []byte("Opening hours: 9am to 5pm.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(Options{
		CompanyProfile: "static profile that should be ignored",
		KnowledgeFile:  path,
	})
	prompt, err := b.System()
	if err != nil {
		t.Fatalf("System: %v", err)
	}
	if !strings.Contains(prompt, "Opening hours: 9am to 5pm.") {
		t.Fatal("system prompt missing knowledge file content")
	}
	if strings.Contains(prompt, "static profile") {
		t.Fatal("knowledge file should replace the static profile")
	}
}

func TestSystemMissingKnowledgeFile(t *testing.T) {
	b := NewBuilder(Options{KnowledgeFile: filepath.Join(t.TempDir(), "absent.txt")})
	if _, err := b.System(); err == nil {
		t.Fatal("expected error for missing knowledge file")
	}
}

func TestUserWrapsQuestion(t *testing.T) {
	b := NewBuilder(Options{})
	prompt := b.User("  what are your opening hours?  ")
	if !strings.Contains(prompt, "Customer Question: what are your opening hours?") {
		t.Fatalf("unexpected user prompt: %q", prompt)
	}
	if !strings.Contains(prompt, "same language as the question") {
		t.Fatal("user prompt missing language instruction")
	}
}
