package types_test

import (
	"testing"
	"time"

	"github.com/linkwatch/linkwatch/pkg/types"
)

func TestParseMappings_Valid(t *testing.T) {
	pairs, malformed := types.ParseMappings("DC1:API, DC2:WEB ,DC1:AUTH")

	if len(malformed) != 0 {
		t.Errorf("expected no malformed entries, got %v", malformed)
	}
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}

	expected := []types.Pair{
		{DC: "DC1", Service: "API"},
		{DC: "DC2", Service: "WEB"},
		{DC: "DC1", Service: "AUTH"},
	}
	for i, want := range expected {
		if pairs[i] != want {
			t.Errorf("pair %d: expected %v, got %v", i, want, pairs[i])
		}
	}
}

func TestParseMappings_Malformed(t *testing.T) {
	pairs, malformed := types.ParseMappings("DC1:API,bogus,:WEB,DC2:")

	if len(pairs) != 1 {
		t.Fatalf("expected 1 valid pair, got %d", len(pairs))
	}
	if pairs[0].String() != "DC1-API" {
		t.Errorf("expected DC1-API, got %s", pairs[0])
	}
	if len(malformed) != 3 {
		t.Errorf("expected 3 malformed entries, got %v", malformed)
	}
}

func TestParseMappings_Empty(t *testing.T) {
	pairs, malformed := types.ParseMappings("")

	if len(pairs) != 0 || len(malformed) != 0 {
		t.Errorf("expected empty results, got pairs=%v malformed=%v", pairs, malformed)
	}
}

func TestPair_Key(t *testing.T) {
	p := types.Pair{DC: "DC1", Service: "API"}

	if p.Key() != "DC1_API" {
		t.Errorf("expected DC1_API, got %s", p.Key())
	}
	if p.String() != "DC1-API" {
		t.Errorf("expected DC1-API, got %s", p.String())
	}
}

func TestSSHConfig_Complete(t *testing.T) {
	tests := []struct {
		name     string
		config   types.SSHConfig
		complete bool
	}{
		{
			name:     "password auth",
			config:   types.SSHConfig{Host: "10.0.0.1", Port: 22, Username: "ops", Password: "secret"},
			complete: true,
		},
		{
			name:     "key auth",
			config:   types.SSHConfig{Host: "10.0.0.1", Port: 22, Username: "ops", KeyPath: "/keys/id_rsa"},
			complete: true,
		},
		{
			name:     "no credentials",
			config:   types.SSHConfig{Host: "10.0.0.1", Port: 22, Username: "ops"},
			complete: false,
		},
		{
			name:     "missing host",
			config:   types.SSHConfig{Port: 22, Username: "ops", Password: "secret"},
			complete: false,
		},
		{
			name:     "zero port",
			config:   types.SSHConfig{Host: "10.0.0.1", Username: "ops", Password: "secret"},
			complete: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Complete(); got != tt.complete {
				t.Errorf("Complete() = %v, want %v", got, tt.complete)
			}
		})
	}
}

func TestSSHConfig_Validate(t *testing.T) {
	valid := types.SSHConfig{Host: "10.0.0.1", Port: 22, Username: "ops", Password: "secret"}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	badPort := types.SSHConfig{Host: "10.0.0.1", Port: 70000, Username: "ops", Password: "secret"}
	if err := badPort.Validate(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestCheckResult_ResponseMillis(t *testing.T) {
	r := types.CheckResult{ResponseTime: 1500 * time.Microsecond}

	if r.ResponseMillis() != 1.5 {
		t.Errorf("expected 1.5ms, got %v", r.ResponseMillis())
	}
}

func TestMonitorConfig_Lookups(t *testing.T) {
	cfg := &types.MonitorConfig{
		ServiceURLs: map[string]string{"API": "http://api.internal/health"},
		SSHConfigs: map[string]types.SSHConfig{
			"DC1": {Host: "10.0.0.1", Port: 22, Username: "ops", Password: "x"},
		},
	}

	if url, ok := cfg.URLFor("API"); !ok || url != "http://api.internal/health" {
		t.Errorf("URLFor(API) = %q, %v", url, ok)
	}
	if _, ok := cfg.URLFor("WEB"); ok {
		t.Error("expected no URL for WEB")
	}
	if ssh, ok := cfg.SSHFor("DC1"); !ok || ssh.Host != "10.0.0.1" {
		t.Errorf("SSHFor(DC1) = %v, %v", ssh, ok)
	}
	if _, ok := cfg.SSHFor("DC9"); ok {
		t.Error("expected no SSH config for DC9")
	}
}
