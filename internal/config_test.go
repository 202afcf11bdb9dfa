package internal

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Auth.AuthEnabled() {
		t.Error("auth should be disabled by default")
	}
	if got := cfg.Sync.Frequency(); got != 180*time.Minute {
		t.Errorf("Frequency() = %v, want 180m", got)
	}
}

func TestAuthConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
		enabled bool
	}{
		{"empty mode normalises to disabled", AuthConfig{}, false, false},
		{"disabled", AuthConfig{Mode: AuthModeDisabled}, false, false},
		{"token with token", AuthConfig{Mode: AuthModeToken, Token: "s3cret"}, false, true},
		{"token without token", AuthConfig{Mode: AuthModeToken}, true, false},
		{"unknown mode", AuthConfig{Mode: "oauth"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.cfg.AuthEnabled() != tt.enabled {
				t.Errorf("AuthEnabled() = %v, want %v", tt.cfg.AuthEnabled(), tt.enabled)
			}
		})
	}
}

func TestHTTPConfigValidate(t *testing.T) {
	c := HTTPConfig{Port: 8080}
	if err := c.Validate(); err != nil {
		t.Errorf("valid port rejected: %v", err)
	}
	if got := c.Address(); got != ":8080" {
		t.Errorf("Address() = %q", got)
	}
	for _, port := range []int{0, -1, 70000} {
		c := HTTPConfig{Port: port}
		if err := c.Validate(); err == nil {
			t.Errorf("port %d accepted", port)
		}
	}
}

func TestSyncConfigValidate(t *testing.T) {
	cfg := NewDefaultConfig().Sync
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default sync config invalid: %v", err)
	}
	cfg.Directory = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty directory accepted")
	}
}

func TestSyncFrequency(t *testing.T) {
	tests := []struct {
		name string
		cfg  SyncConfig
		want time.Duration
	}{
		{"auto sync off", SyncConfig{AutoSync: false, FrequencyMinutes: 60}, 0},
		{"zero minutes", SyncConfig{AutoSync: true, FrequencyMinutes: 0}, 0},
		{"hourly", SyncConfig{AutoSync: true, FrequencyMinutes: 60}, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Frequency(); got != tt.want {
				t.Errorf("Frequency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSyncChangedAt(t *testing.T) {
	tests := []struct {
		name string
		cfg  SyncConfig
		want string
	}{
		{"default", SyncConfig{}, "created_at"},
		{"flag without property", SyncConfig{UseCustomChangedAt: true}, "created_at"},
		{"property without flag", SyncConfig{ChangedAtProperty: "recorded_on"}, "created_at"},
		{"custom", SyncConfig{UseCustomChangedAt: true, ChangedAtProperty: "recorded_on"}, "recorded_on"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ChangedAt(); got != tt.want {
				t.Errorf("ChangedAt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeleteFromServerNeedsBothFlags(t *testing.T) {
	tests := []struct {
		del, really, want bool
	}{
		{false, false, false},
		{true, false, false},
		{false, true, false},
		{true, true, true},
	}
	for _, tt := range tests {
		cfg := SyncConfig{DeleteSynced: tt.del, ReallyDeleteSynced: tt.really}
		if got := cfg.DeleteFromServer(); got != tt.want {
			t.Errorf("DeleteFromServer(%v, %v) = %v, want %v", tt.del, tt.really, got, tt.want)
		}
	}
}
