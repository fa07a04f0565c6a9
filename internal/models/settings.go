package models

// Settings is the per-user key-value settings record.
type Settings struct {
	AutoSync       bool `json:"autoSync"`
	SilentMode     bool `json:"silentMode"`
	AutoDeleteDays int  `json:"autoDeleteDays"`
	DataSaver      bool `json:"dataSaver"`
	Analytics      bool `json:"analytics"`
}

// DefaultSettings returns the settings applied to a user with no stored record.
func DefaultSettings() Settings {
	return Settings{
		AutoSync:       true,
		SilentMode:     false,
		AutoDeleteDays: 0,
		DataSaver:      false,
		Analytics:      true,
	}
}

// MessageExport is the serialized snapshot produced by the export operation.
type MessageExport struct {
	SenderID   string    `json:"senderId"`
	ExportedAt string    `json:"exportedAt"`
	Messages   []Message `json:"messages"`
}
