package config

import (
	"strings"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	if err := Validate(GetDefaults()); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad profile",
			mutate:  func(c *Config) { c.Profile = "aggressive" },
			wantErr: "invalid profile",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name: "shift bounds inverted",
			mutate: func(c *Config) {
				c.ShiftBounds["safe-harbor"] = ShiftBoundsConfig{MinDays: -30, MaxDays: -365}
			},
			wantErr: "exceeds max",
		},
		{
			name: "shift bounds include zero",
			mutate: func(c *Config) {
				c.ShiftBounds["safe-harbor"] = ShiftBoundsConfig{MinDays: -10, MaxDays: 10}
			},
			wantErr: "exclude zero",
		},
		{
			name:    "zone fraction out of range",
			mutate:  func(c *Config) { c.Zones.Header = 1.5 },
			wantErr: "zone thresholds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := GetDefaults()
			tt.mutate(c)
			err := Validate(c)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestPositiveShiftBoundsAllowed(t *testing.T) {
	c := GetDefaults()
	c.ShiftBounds["safe-harbor"] = ShiftBoundsConfig{MinDays: 30, MaxDays: 365}
	if err := Validate(c); err != nil {
		t.Errorf("forward-only bounds rejected: %v", err)
	}
}

func TestSaltNeverValidated(t *testing.T) {
	// The salt is opaque; validation must not inspect or require it.
	c := GetDefaults()
	c.SetSalt(nil)
	if err := Validate(c); err != nil {
		t.Errorf("validation depends on the salt: %v", err)
	}
}

func TestSetSalt(t *testing.T) {
	c := GetDefaults()
	c.SetSalt([]byte("secret"))
	if string(c.Salt()) != "secret" {
		t.Error("salt round trip failed")
	}
}
