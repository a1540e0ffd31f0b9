package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quota-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

func TestParse_YAML(t *testing.T) {
	data := []byte(`
rateLimitConfig:
  - type: Anonymous
    timeWindowSeconds: 10
    maxRequests: 2
  - type: Referer
    timeWindow: 60
    maxRequests: 100
  - Type: LoggedUser
    TimeWindowSeconds: 30
    MaxRequests: 5
`)
	table, warnings, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	p, ok := table.FindPolicy(domain.KindAnonymous)
	if !ok || p.WindowSeconds != 10 || p.MaxRequests != 2 {
		t.Fatalf("unexpected Anonymous policy %+v ok=%v", p, ok)
	}
	p, ok = table.FindPolicy(domain.KindReferrer)
	if !ok || p.WindowSeconds != 60 || p.MaxRequests != 100 {
		t.Fatalf("unexpected Referrer policy %+v ok=%v", p, ok)
	}
	p, ok = table.FindPolicy(domain.KindLoggedIn)
	if !ok || p.WindowSeconds != 30 || p.MaxRequests != 5 {
		t.Fatalf("unexpected LoggedIn policy %+v ok=%v", p, ok)
	}
}

func TestParse_JSON(t *testing.T) {
	data := []byte(`{"RateLimitConfig":[{"Type":"Anonymous","TimeWindow":10,"MaxRequests":2}]}`)
	table, _, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := table.FindPolicy(domain.KindAnonymous); !ok {
		t.Fatalf("expected Anonymous policy from JSON document")
	}
}

func TestParse_MalformedEntriesDefaultToZero(t *testing.T) {
	data := []byte(`
rateLimitConfig:
  - type: Anonymous
    timeWindowSeconds: ten
    maxRequests: 2
  - just-a-string
  - type: Martian
    timeWindowSeconds: 1
    maxRequests: 1
  - type: Referrer
    maxRequests: [1, 2]
`)
	table, warnings, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %d: %v", len(warnings), warnings)
	}
	if len(table.Policies()) != 4 {
		t.Fatalf("expected every entry to be kept, got %d", len(table.Policies()))
	}

	// janela zerada = política desabilitada
	if _, ok := table.FindPolicy(domain.KindAnonymous); ok {
		t.Fatalf("expected Anonymous policy with zero window to be disabled")
	}
	if _, ok := table.FindPolicy(domain.KindReferrer); ok {
		t.Fatalf("expected Referrer policy with invalid max to be disabled")
	}
}

func TestParse_MissingSectionMeansNoTable(t *testing.T) {
	for _, data := range []string{"", "other: 1\n"} {
		table, _, err := Parse([]byte(data))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", data, err)
		}
		if table != nil {
			t.Fatalf("expected nil table for %q", data)
		}
	}
}

func TestParse_SectionNotAList(t *testing.T) {
	table, warnings, err := Parse([]byte("rateLimitConfig: nope\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table == nil || len(table.Policies()) != 0 || len(warnings) != 1 {
		t.Fatalf("expected empty table with one warning, got %v %v", table, warnings)
	}
}

func TestParse_InvalidDocument(t *testing.T) {
	if _, _, err := Parse([]byte("- a\n- b\n")); err == nil {
		t.Fatalf("expected error for top-level list")
	}
	if _, _, err := Parse([]byte("rateLimitConfig: [\n")); err == nil {
		t.Fatalf("expected error for broken YAML")
	}
}

func TestLoad_LogsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policies.yaml")
	content := `
rateLimitConfig:
  - {type: Anonymous, timeWindowSeconds: 10, maxRequests: 2}
  - {type: Anonymous, timeWindowSeconds: 99, maxRequests: 99}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var buf bytes.Buffer
	table, err := Load(path, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := table.FindPolicy(domain.KindAnonymous)
	if p.WindowSeconds != 10 {
		t.Fatalf("expected first entry to win, got %+v", p)
	}
	if !strings.Contains(buf.String(), "duplicate policy ignored") {
		t.Fatalf("expected duplicate warning in log, got %s", buf.String())
	}
}

func TestLoad_EmptyPathAndMissingFile(t *testing.T) {
	table, err := Load("", zerolog.Nop())
	if err != nil || table != nil {
		t.Fatalf("expected nil table without error, got %v %v", table, err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
