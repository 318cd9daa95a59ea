package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"odds-value-alerts/internal/signals"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Interval != 3*time.Minute {
		t.Fatalf("默认轮询间隔应为 3m, 实际 %s", cfg.Scheduler.Interval)
	}
	if len(cfg.OddsAPI.Leagues) != 6 || cfg.OddsAPI.Regions != "eu" {
		t.Fatalf("unexpected odds api defaults %+v", cfg.OddsAPI)
	}
	if cfg.Alerting.MinInterval != 1100*time.Millisecond || cfg.Alerting.RetryPadding != time.Second {
		t.Fatalf("unexpected alert spacing %+v", cfg.Alerting)
	}

	sc := cfg.SignalsConfig()
	want := signals.DefaultConfig()
	if sc.Weights != want.Weights || sc.Thresholds != want.Thresholds ||
		sc.SharpThreshold != want.SharpThreshold || sc.DeviationThreshold != want.DeviationThreshold ||
		sc.OutcomeMatching != signals.MatchByName {
		t.Fatalf("signals config %+v differs from defaults %+v", sc, want)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
model:
  sharp_weight: 0.5
  move_weight: 0.5
movement:
  sharp_threshold: 0.3
  outcome_matching: position
oddsapi:
  leagues: soccer_epl,soccer_spain_la_liga
snapshots:
  timezone: Europe/London
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.SharpWeight != 0.5 || cfg.Movement.SharpThreshold != 0.3 {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Model, cfg.Movement)
	}
	if got := cfg.SignalsConfig().OutcomeMatching; got != signals.MatchByPosition {
		t.Fatalf("outcome matching = %s", got)
	}
	if len(cfg.OddsAPI.Leagues) != 2 {
		t.Fatalf("comma separated leagues should split: %v", cfg.OddsAPI.Leagues)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/London" {
		t.Fatalf("location %v %v", loc, err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ODDSWATCHER_ODDSAPI_API_KEY", "secret")
	t.Setenv("ODDSWATCHER_DISAGREEMENT_DEVIATION_THRESHOLD", "0.4")
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OddsAPI.APIKey != "secret" {
		t.Fatalf("环境变量应覆盖 api key, 实际 %q", cfg.OddsAPI.APIKey)
	}
	if cfg.Disagreement.DeviationThreshold != 0.4 {
		t.Fatalf("deviation threshold = %v", cfg.Disagreement.DeviationThreshold)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"weights":  "model:\n  sharp_weight: 0.7\n  move_weight: 0.7\n",
		"edges":    "model:\n  strong_edge: 0.05\n  medium_edge: 0.10\n",
		"matching": "movement:\n  outcome_matching: index\n",
		"telegram": "alerting:\n  telegram:\n    enabled: true\n",
		"timezone": "snapshots:\n  timezone: Mars/Olympus\n",
		"interval": "scheduler:\n  interval: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("%s: 非法配置应报错", name)
			}
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 10}}
	if cfg.ResolveMaxPoints(0) != 10 || cfg.ResolveMaxPoints(3) != 3 {
		t.Fatal("override should win only when positive")
	}
	if !strings.EqualFold(EnvPrefix, "oddswatcher") {
		t.Fatal("unexpected env prefix")
	}
}
