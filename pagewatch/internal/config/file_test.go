package config

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Route.Prefix != "/saved" {
		t.Fatalf("prefix: got %q", cfg.Route.Prefix)
	}
	if cfg.Observer.Debounce != 100*time.Millisecond {
		t.Fatalf("debounce: got %v", cfg.Observer.Debounce)
	}
	if !cfg.Browser.StealthEnabled() {
		t.Fatal("stealth should default to on")
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "favicon" || cfg.Sinks[0].Size != 32 {
		t.Fatalf("sinks: got %+v", cfg.Sinks)
	}
	sc, err := cfg.ScanConfig()
	if err != nil {
		t.Fatalf("ScanConfig: %v", err)
	}
	loc, _ := url.Parse("https://example.test/saved/all")
	if !sc.Route.Match(loc) {
		t.Fatal("default route should match /saved/all")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "savedtabs.yaml")
	data := `
browser:
  remote: ws://127.0.0.1:9222/devtools/browser/abc
  stealth: false
  recycle_interval: -1s
  start_urls: [https://example.test/saved]
route:
  prefix: /bookmarks
observer:
  debounce: 250ms
indicator:
  cap: 50
  sizes: [16, 32]
registry:
  listen: 127.0.0.1:8720
  mcp: true
sinks:
  - type: webhook
    url: http://127.0.0.1:9000/hook
  - type: stdout
    images: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Browser.StealthEnabled() {
		t.Fatal("stealth: false was ignored")
	}
	if cfg.Browser.RecycleInterval != -time.Second {
		t.Fatalf("recycle_interval: got %v", cfg.Browser.RecycleInterval)
	}
	if cfg.Route.Prefix != "/bookmarks" || cfg.Route.Container == "" {
		t.Fatalf("route: got %+v", cfg.Route)
	}
	if cfg.Observer.Debounce != 250*time.Millisecond {
		t.Fatalf("debounce: got %v", cfg.Observer.Debounce)
	}
	if cfg.Indicator.Cap != 50 || len(cfg.Indicator.Sizes) != 2 {
		t.Fatalf("indicator: got %+v", cfg.Indicator)
	}
	if cfg.Sinks[0].Retries != 3 {
		t.Fatalf("webhook retries default: got %d", cfg.Sinks[0].Retries)
	}
	reg := cfg.RegistryOptions()
	if reg.Listen != "127.0.0.1:8720" || !reg.MCP || reg.Indicator.Cap != 50 {
		t.Fatalf("registry options: got %+v", reg)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "browser: [unterminated"},
		{"bad mode", "browser:\n  mode: kiosk\n"},
		{"unknown sink", "sinks:\n  - type: nats\n"},
		{"webhook without url", "sinks:\n  - type: webhook\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestScanConfig_BadSelector(t *testing.T) {
	cfg, err := Parse([]byte("route:\n  container: \"div > a\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := cfg.ScanConfig(); err == nil {
		t.Fatal("expected selector error for a combinator")
	}
}
