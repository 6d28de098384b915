package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Default policy values for settings the configuration may omit.
const (
	// DefaultAttachmentMaxBytes is the relay size ceiling: attachments
	// with a larger declared size are skipped, not downloaded.
	DefaultAttachmentMaxBytes = 3 * 1024 * 1024

	// DefaultMessageDelayMS is the pause between processed messages,
	// throttling calls against the task API's rate limits.
	DefaultMessageDelayMS = 500

	// DefaultPageSize bounds how many messages a single Graph list
	// request may return.
	DefaultPageSize = 50
)

// Config is the complete bridge configuration, constructed once in main
// and passed by reference into every component constructor. No component
// reads environment or global state directly.
type Config struct {
	// Microsoft Graph application credentials.
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`

	// MailUser is the mailbox owner whose folders are walked.
	MailUser string `mapstructure:"mail_user"`

	// MailFolderPath locates the source folder as an ordered list of
	// display names from the mailbox root. The last two segments are the
	// routing tags (location, job number).
	MailFolderPath []string `mapstructure:"mail_folder_path"`

	// GraphBaseURL overrides the Graph endpoint, mainly for tests.
	GraphBaseURL string `mapstructure:"graph_base_url"`

	// Asana personal access token and destination coordinates.
	TaskAPIToken     string `mapstructure:"task_api_token"`
	AsanaBaseURL     string `mapstructure:"asana_base_url"`
	WorkspaceID      string `mapstructure:"workspace_id"`
	ProjectID        string `mapstructure:"project_id"`
	DefaultSectionID string `mapstructure:"default_section_id"`

	// Optional keyword-routed sections. An empty value means the keyword
	// falls through to the default section.
	BudgetSectionID    string `mapstructure:"budget_section_id"`
	QuotationSectionID string `mapstructure:"quotation_section_id"`
	OrderSectionID     string `mapstructure:"order_section_id"`

	// Custom field identifiers set on every created task.
	LocationFieldID  string `mapstructure:"location_field_id"`
	JobNumberFieldID string `mapstructure:"job_number_field_id"`

	// Local state.
	LedgerPath    string `mapstructure:"ledger_path"`
	ScratchDir    string `mapstructure:"scratch_dir"`
	ArchiveDBPath string `mapstructure:"archive_db_path"`

	// Policy knobs.
	AttachmentMaxBytes int64 `mapstructure:"attachment_max_bytes"`
	MessageDelayMS     int   `mapstructure:"message_delay_ms"`
	PageSize           int   `mapstructure:"page_size"`
}

// DefaultConfigPath returns the default configuration file location,
// ~/.config/mailbridge/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailbridge", "config.yaml")
}

// LoadConfig reads configuration from the given YAML file using Viper,
// with environment variables (prefix MAILBRIDGE_) overriding file
// values. A missing file is not an error; required settings are checked
// separately by Validate.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("mailbridge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("graph_base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("asana_base_url", "https://app.asana.com/api/1.0")
	v.SetDefault("ledger_path", "processed_ids.txt")
	v.SetDefault("scratch_dir", "temp_attachments")
	v.SetDefault("archive_db_path", "mailbridge.db")
	v.SetDefault("attachment_max_bytes", DefaultAttachmentMaxBytes)
	v.SetDefault("message_delay_ms", DefaultMessageDelayMS)
	v.SetDefault("page_size", DefaultPageSize)

	// Bind every key explicitly so AutomaticEnv resolves keys that have
	// no value in the config file.
	for _, key := range []string{
		"tenant_id", "client_id", "client_secret",
		"mail_user", "mail_folder_path",
		"task_api_token", "workspace_id", "project_id",
		"default_section_id", "budget_section_id",
		"quotation_section_id", "order_section_id",
		"location_field_id", "job_number_field_id",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Environment variables deliver the folder path as one
	// comma-separated value; normalize segments either way.
	var segments []string
	for _, raw := range cfg.MailFolderPath {
		for _, p := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				segments = append(segments, trimmed)
			}
		}
	}
	cfg.MailFolderPath = segments

	return cfg, nil
}

// Validate checks that every setting the pipeline requires is present,
// reporting all missing keys at once so a misconfigured deployment can
// be fixed in one pass. It must be called before any network activity.
func (c *Config) Validate() error {
	var missing []string

	required := []struct {
		key   string
		value string
	}{
		{"tenant_id", c.TenantID},
		{"client_id", c.ClientID},
		{"client_secret", c.ClientSecret},
		{"mail_user", c.MailUser},
		{"task_api_token", c.TaskAPIToken},
		{"workspace_id", c.WorkspaceID},
		{"project_id", c.ProjectID},
		{"default_section_id", c.DefaultSectionID},
		{"location_field_id", c.LocationFieldID},
		{"job_number_field_id", c.JobNumberFieldID},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}

	if len(c.MailFolderPath) == 0 {
		missing = append(missing, "mail_folder_path")
	}

	if len(missing) > 0 {
		return fmt.Errorf(
			"missing required configuration: %s",
			strings.Join(missing, ", "),
		)
	}

	if len(c.MailFolderPath) < 2 {
		return fmt.Errorf(
			"mail_folder_path needs at least two segments "+
				"(…/location/job-number), got %d",
			len(c.MailFolderPath),
		)
	}

	return nil
}
