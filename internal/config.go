package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes for the daemon API.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Voicenotes VoicenotesConfig  `yaml:"voicenotes"`
	Sync       SyncConfig        `yaml:"sync"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Sync.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration for daemon mode.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the daemon API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled".
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// VoicenotesConfig holds credentials and endpoint for the remote service.
// Token is usually supplied via ${VOICENOTES_TOKEN} in the config file.
type VoicenotesConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// SyncConfig controls the sync pass and document rendering.
//
// DateFormat and FilenameDateFormat are Go reference layouts
// (e.g. "2006-01-02").
type SyncConfig struct {
	Directory           string   `yaml:"directory"`
	AutoSync            bool     `yaml:"auto_sync"`
	FrequencyMinutes    int      `yaml:"frequency_minutes"`
	DownloadAudio       bool     `yaml:"download_audio"`
	DeleteSynced        bool     `yaml:"delete_synced"`
	ReallyDeleteSynced  bool     `yaml:"really_delete_synced"`
	ExcludeTags         []string `yaml:"exclude_tags"`
	TodoTag             string   `yaml:"todo_tag"`
	UseCustomChangedAt  bool     `yaml:"use_custom_changed_at"`
	ChangedAtProperty   string   `yaml:"changed_at_property"`
	DateFormat          string   `yaml:"date_format"`
	FilenameDateFormat  string   `yaml:"filename_date_format"`
	FilenameTemplate    string   `yaml:"filename_template"`
	NoteTemplate        string   `yaml:"note_template"`
	FrontmatterTemplate string   `yaml:"frontmatter_template"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Directory, validation.Required),
		validation.Field(&c.FrequencyMinutes, validation.Min(0)),
		validation.Field(&c.FilenameTemplate, validation.Required),
		validation.Field(&c.NoteTemplate, validation.Required),
	)
}

// Frequency returns the auto-sync interval, zero when auto-sync is off.
func (c *SyncConfig) Frequency() time.Duration {
	if !c.AutoSync || c.FrequencyMinutes <= 0 {
		return 0
	}
	return time.Duration(c.FrequencyMinutes) * time.Minute
}

// ChangedAt returns the frontmatter property that decides which day a
// recording belongs to. Defaults to created_at.
func (c *SyncConfig) ChangedAt() string {
	if c.UseCustomChangedAt && c.ChangedAtProperty != "" {
		return c.ChangedAtProperty
	}
	return "created_at"
}

// DeleteFromServer reports whether synced recordings should be removed
// remotely. Both flags must be set: the second acts as a confirmation so a
// single stray yaml edit cannot start deleting server data.
func (c *SyncConfig) DeleteFromServer() bool {
	return c.DeleteSynced && c.ReallyDeleteSynced
}

// DefaultNoteTemplate is the rendered body when no template is configured.
const DefaultNoteTemplate = `# {{ title }}

Date: {{ date }}

{% if summary %}
## Summary

{{ summary }}
{% endif %}

{% if points %}
## Main points

{{ points }}
{% endif %}

{% if attachments %}
## Attachments

{{ attachments }}
{% endif %}

{% if tidy %}
## Tidy Transcript

{{ tidy }}

{% else %}
## Transcript

{{ transcript }}
{% endif %}

{% if embedded_audio_link %}
{{ embedded_audio_link }}
{% endif %}

{% if todo %}
## Todos

{{ todo }}
{% endif %}

{% if email %}
## Email

{{ email }}
{% endif %}

{% if blog %}
## Blog

{{ blog }}
{% endif %}

{% if tweet %}
## Tweet

{{ tweet }}
{% endif %}

{% if custom %}
## Others

{{ custom }}
{% endif %}

{% if tags %}
## Tags

{{ tags }}
{% endif %}

{% if related_notes %}
## Related Notes

{{ related_notes }}
{% endif %}

{% if parent_note %}
## Parent Note

- {{ parent_note }}
{% endif %}

{% if subnotes %}
## Subnotes

{{ subnotes }}
{% endif %}`

// DefaultFrontmatterTemplate is appended after the forced recording_id line.
const DefaultFrontmatterTemplate = `duration: {{duration}}
created_at: {{created_at}}
updated_at: {{updated_at}}
{{tags}}`

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./voxsync.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Voicenotes: VoicenotesConfig{},
		Sync: SyncConfig{
			Directory:           "voicenotes",
			AutoSync:            true,
			FrequencyMinutes:    180,
			DateFormat:          "2006-01-02",
			FilenameDateFormat:  "2006-01-02",
			FilenameTemplate:    "{{date}} {{title}}",
			NoteTemplate:        DefaultNoteTemplate,
			FrontmatterTemplate: DefaultFrontmatterTemplate,
		},
	}
}
