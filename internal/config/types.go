package config

// Config is the full configuration file. YAML and JSON are both accepted;
// YAML is coerced to JSON so a single strict decoder validates both.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "2m").
type Config struct {
	Meetup   MeetupConfig   `json:"meetup"`
	NTP      NTPConfig      `json:"ntp,omitempty"`
	Gate     GateConfig     `json:"gate,omitempty"`
	Booking  BookingConfig  `json:"booking,omitempty"`
	History  HistoryConfig  `json:"history,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
	Daemon   DaemonConfig   `json:"daemon,omitempty"`
}

type MeetupConfig struct {
	Endpoint string `json:"endpoint"`
	// AccessToken may instead come from the RSVPBOT_ACCESS_TOKEN
	// environment variable, which wins over the file.
	AccessToken string `json:"access_token,omitempty"`

	// Versioned protocol constants (see internal/meetup/protocol.go);
	// empty values take the built-in defaults.
	RSVPQueryHash  string   `json:"rsvp_query_hash,omitempty"`
	TransientCodes []string `json:"transient_codes,omitempty"`

	DryRun bool `json:"dry_run,omitempty"`

	// Transport-level retry policy (POST, 5xx only).
	RetryMax     int    `json:"retry_max,omitempty"`
	RetryWaitMin string `json:"retry_wait_min,omitempty"`
	RetryWaitMax string `json:"retry_wait_max,omitempty"`
}

type NTPConfig struct {
	Server  string `json:"server,omitempty"`  // default: pool.ntp.org
	Timeout string `json:"timeout,omitempty"` // default: 5s
}

// GateConfig configures the arming window and target boundary.
// TargetHour is a pointer so "omitted" (roll to the next hour) can be told
// apart from an explicit hour 0.
type GateConfig struct {
	StartMinute  int    `json:"start_minute"`
	EndMinute    int    `json:"end_minute"`
	TargetHour   *int   `json:"target_hour,omitempty"`
	TargetMinute int    `json:"target_minute"`
	Margin       string `json:"margin,omitempty"` // default: 100ms
}

type BookingConfig struct {
	MinAttempts int    `json:"min_attempts,omitempty"` // default: 2
	MaxAttempts int    `json:"max_attempts,omitempty"` // default: 3
	TimeBudget  string `json:"time_budget,omitempty"`  // default: 2m
	Interval    string `json:"interval,omitempty"`     // default: 5s; --interval_seconds wins
}

type HistoryConfig struct {
	Path        string `json:"path,omitempty"` // empty disables history
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token,omitempty"`
	ChatID int64  `json:"chat_id,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level,omitempty"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file,omitempty"`
	Telegram LoggingTelegram `json:"telegram,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// DaemonConfig only applies when --schedule is given.
type DaemonConfig struct {
	Timezone string `json:"timezone,omitempty"` // IANA TZ for the cron spec
	Watchdog bool   `json:"watchdog,omitempty"` // sd_notify watchdog pings
}
