package cmd

import (
	"testing"
	"time"

	"github.com/Cyph1x/PowerContribution/pkg/config"
	"github.com/Cyph1x/PowerContribution/pkg/pricing"
)

func TestBuildRatesProvider(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = config.DefaultConfig()
	cfg.Pricing.Rates = map[string]float64{"Unknown": 0.28}

	t.Run("DefaultsToConfig", func(t *testing.T) {
		for _, source := range []string{"", "config", " Config "} {
			p, err := buildRatesProvider(source, "", nil)
			if err != nil {
				t.Fatalf("buildRatesProvider(%q) returned error: %v", source, err)
			}
			if _, ok := p.(*pricing.StaticProvider); !ok {
				t.Fatalf("buildRatesProvider(%q) returned %T, want *pricing.StaticProvider", source, p)
			}
			if p.Source() != "config" {
				t.Errorf("Source() = %q, want config", p.Source())
			}
		}
	})

	t.Run("MCP", func(t *testing.T) {
		p, err := buildRatesProvider("mcp", "fetch-rates", []string{"--json"})
		if err != nil {
			t.Fatalf("buildRatesProvider(mcp) returned error: %v", err)
		}
		if _, ok := p.(*pricing.MCPProvider); !ok {
			t.Fatalf("buildRatesProvider(mcp) returned %T, want *pricing.MCPProvider", p)
		}
	})

	t.Run("MCPRequiresCommand", func(t *testing.T) {
		if _, err := buildRatesProvider("mcp", "   ", nil); err == nil {
			t.Fatal("expected error for mcp source without a command")
		}
	})

	t.Run("UnknownSource", func(t *testing.T) {
		if _, err := buildRatesProvider("oracle", "", nil); err == nil {
			t.Fatal("expected error for unknown rates source")
		}
	})
}

func TestResolveWindow(t *testing.T) {
	t.Run("LookbackDays", func(t *testing.T) {
		start, end, err := resolveWindow(7, "", "")
		if err != nil {
			t.Fatalf("resolveWindow returned error: %v", err)
		}
		if got := end.Sub(start); got != 7*24*time.Hour {
			t.Errorf("window length = %v, want 168h", got)
		}
	})

	t.Run("ExplicitBoundsWin", func(t *testing.T) {
		start, end, err := resolveWindow(7, "2025-01-16", "2025-02-15")
		if err != nil {
			t.Fatalf("resolveWindow returned error: %v", err)
		}
		if start != time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC) {
			t.Errorf("start = %v", start)
		}
		if end != time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC) {
			t.Errorf("end = %v", end)
		}
	})

	t.Run("RFC3339Accepted", func(t *testing.T) {
		start, _, err := resolveWindow(0, "2025-01-16T10:30:00+10:00", "2025-02-15")
		if err != nil {
			t.Fatalf("resolveWindow returned error: %v", err)
		}
		if start != time.Date(2025, 1, 16, 0, 30, 0, 0, time.UTC) {
			t.Errorf("start = %v, want normalized to UTC", start)
		}
	})

	t.Run("StartAfterEnd", func(t *testing.T) {
		if _, _, err := resolveWindow(0, "2025-02-15", "2025-01-16"); err == nil {
			t.Fatal("expected error when start is not before end")
		}
	})

	t.Run("BadDays", func(t *testing.T) {
		if _, _, err := resolveWindow(0, "", ""); err == nil {
			t.Fatal("expected error for non-positive --days")
		}
	})

	t.Run("BadTimestamp", func(t *testing.T) {
		if _, _, err := resolveWindow(0, "last tuesday", ""); err == nil {
			t.Fatal("expected error for unparseable --start")
		}
	})
}
