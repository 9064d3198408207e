package config

import (
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("u1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.User.ID != "u1" {
		t.Fatalf("user id %q", cfg.User.ID)
	}
	if cfg.Scoring.BlockBase != 5 || cfg.Scoring.HighPriorityRateBonus != 25 {
		t.Fatalf("scoring weights %+v", cfg.Scoring)
	}
}

func TestRulesParsesWindows(t *testing.T) {
	cfg := Default("u1")
	rules, err := cfg.Rules()
	if err != nil {
		t.Fatal(err)
	}
	if len(rules.DeepWorkWindows) != 2 || len(rules.AdminWindows) != 3 {
		t.Fatalf("windows %+v", rules)
	}
	if rules.DeepWorkWindows[0].Start != 480 || rules.DeepWorkWindows[0].End != 660 {
		t.Fatalf("first deep-work window %+v", rules.DeepWorkWindows[0])
	}
	if rules.MaxDeepWorkMinutes != 210 {
		t.Fatalf("deep-work minutes %d", rules.MaxDeepWorkMinutes)
	}
}

func TestFromYAMLRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name    string
		mangle  func(string) string
		wantErr string
	}{
		{"missing user", func(s string) string {
			return strings.Replace(s, "id: u1", "id: \"\"", 1)
		}, "user.id"},
		{"bad window", func(s string) string {
			return strings.Replace(s, "08:00-11:00", "08:00", 1)
		}, "deep_work_windows"},
		{"bad threshold", func(s string) string {
			return strings.Replace(s, "rate_threshold: 0.8", "rate_threshold: 1.5", 1)
		}, "rate_threshold"},
		{"bad stamp time", func(s string) string {
			return strings.Replace(s, `stamp_time: "05:00"`, `stamp_time: "25:00"`, 1)
		}, "stamp_time"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := FromYAML([]byte(c.mangle(GenerateDefault("u1"))))
			if err == nil || !strings.Contains(err.Error(), c.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, c.wantErr)
			}
		})
	}
}
