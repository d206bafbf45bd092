package config

const (
	defaultDataDir              = "~/.local/share/mailroom"
	defaultConsumeDir           = "~/.local/share/mailroom/consume"
	defaultArchiveDir           = "~/documents/archive"
	defaultExportDir            = "~/documents/export"
	defaultLogDir               = "~/.local/share/mailroom/logs"
	defaultAPIBind              = "127.0.0.1:8000"
	defaultPollInterval         = 300
	defaultFetchTimeout         = 120
	defaultCharacterSet         = "UTF-8"
	defaultQueuePollInterval    = 5
	defaultErrorRetryInterval   = 10
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			ConsumeDir: defaultConsumeDir,
			ArchiveDir: defaultArchiveDir,
			ExportDir:  defaultExportDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		IMAP: IMAP{
			PollInterval:        defaultPollInterval,
			FetchTimeout:        defaultFetchTimeout,
			DefaultCharacterSet: defaultCharacterSet,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Filing: Filing{
			ByCorrespondent: true,
			ByYear:          true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Documents:      true,
			Queue:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
