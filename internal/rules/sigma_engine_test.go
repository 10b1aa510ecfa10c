package rules

import (
	"os"
	"path/filepath"
	"testing"

	"guardpost/pkg/models"
)

const nitroScamRule = `title: Nitro Scam Link
id: guardpost-nitro-scam
level: high
logsource:
  product: chat
  service: message
detection:
  selection:
    Content|contains:
      - 'free nitro'
      - 'discord-gift'
  condition: selection
`

const wrongProductRule = `title: Windows Rule
id: not-for-chat
level: high
logsource:
  product: windows
  service: sysmon
detection:
  selection:
    EventID: 1
  condition: selection
`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write rule: %v", err)
	}
}

func TestSigmaEngineMatchesContent(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "nitro.yml", nitroScamRule)

	engine, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("NewSigmaEngine: %v", err)
	}
	if stats.Loaded != 1 {
		t.Fatalf("expected 1 loaded rule, got %+v", stats)
	}

	tags := engine.Apply(&models.MessageReceived{
		GuildID: "g1",
		UserID:  "u1",
		Content: "claim your free nitro here",
	})
	if len(tags) != 1 {
		t.Fatalf("expected 1 tag, got %v", tags)
	}
	if tags[0].ID != "guardpost-nitro-scam" || tags[0].Severity != "high" {
		t.Fatalf("unexpected tag: %+v", tags[0])
	}

	if tags := engine.Apply(&models.MessageReceived{Content: "hello world"}); tags != nil {
		t.Fatalf("expected no tags for clean message, got %v", tags)
	}
}

func TestSigmaEngineSkipsForeignLogsource(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "windows.yml", wrongProductRule)

	_, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("NewSigmaEngine: %v", err)
	}
	if stats.SkippedDatasource != 1 || stats.Loaded != 0 {
		t.Fatalf("expected rule skipped by logsource, got %+v", stats)
	}
}

func TestSigmaEngineSkipsInvalidRule(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "broken.yml", "detection: [not valid")

	_, stats, err := NewSigmaEngine(dir)
	if err != nil {
		t.Fatalf("NewSigmaEngine: %v", err)
	}
	if stats.SkippedInvalid != 1 {
		t.Fatalf("expected invalid rule skipped, got %+v", stats)
	}
}

func TestNoopEngine(t *testing.T) {
	var e NoopEngine
	if tags := e.Apply(&models.MessageReceived{Content: "free nitro"}); tags != nil {
		t.Fatalf("expected nil tags, got %v", tags)
	}
}
