// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// SETTINGS
// =============================================================================

// Settings holds the global chat preferences.
type Settings struct {
	Model        string  `json:"model" toml:"model"`
	Temperature  float64 `json:"temperature" toml:"temperature"`
	MaxTokens    int     `json:"maxTokens" toml:"max_tokens"`
	SystemPrompt string  `json:"systemPrompt" toml:"system_prompt"`

	// Feature flags
	AutoScroll           bool `json:"autoScroll"`
	ShowTimestamps       bool `json:"showTimestamps"`
	SoundEnabled         bool `json:"soundEnabled"`
	NotificationsEnabled bool `json:"notificationsEnabled"`
	AutoSave             bool `json:"autoSave"`

	// Appearance
	MessageSpacing string `json:"messageSpacing"`
	FontFamily     string `json:"fontFamily"`
	FontSize       int    `json:"fontSize"`
}

// DefaultSettings returns the settings used when none are persisted.
func DefaultSettings() Settings {
	return Settings{
		Model:                "gpt-4",
		Temperature:          0.7,
		MaxTokens:            2048,
		SystemPrompt:         "You are a knowledgeable crypto assistant. Be concise and accurate.",
		AutoScroll:           true,
		ShowTimestamps:       true,
		SoundEnabled:         false,
		NotificationsEnabled: true,
		AutoSave:             true,
		MessageSpacing:       "comfortable",
		FontFamily:           "Inter",
		FontSize:             14,
	}
}

// SettingsPatch lists settings fields to overwrite. Nil fields are left untouched.
type SettingsPatch struct {
	Model        *string
	Temperature  *float64
	MaxTokens    *int
	SystemPrompt *string

	AutoScroll           *bool
	ShowTimestamps       *bool
	SoundEnabled         *bool
	NotificationsEnabled *bool
	AutoSave             *bool

	MessageSpacing *string
	FontFamily     *string
	FontSize       *int
}

// Apply shallow-merges the patch into s.
func (p SettingsPatch) Apply(s Settings) Settings {
	setString(&s.Model, p.Model)
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	setInt(&s.MaxTokens, p.MaxTokens)
	setString(&s.SystemPrompt, p.SystemPrompt)
	setBool(&s.AutoScroll, p.AutoScroll)
	setBool(&s.ShowTimestamps, p.ShowTimestamps)
	setBool(&s.SoundEnabled, p.SoundEnabled)
	setBool(&s.NotificationsEnabled, p.NotificationsEnabled)
	setBool(&s.AutoSave, p.AutoSave)
	setString(&s.MessageSpacing, p.MessageSpacing)
	setString(&s.FontFamily, p.FontFamily)
	setInt(&s.FontSize, p.FontSize)
	return s
}

// IsEmpty reports whether the patch changes nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p == SettingsPatch{}
}

// =============================================================================
// UI STATE
// =============================================================================

// Sidebar tabs.
const (
	TabConversations = "conversations"
	TabSettings      = "settings"
)

// UIState holds transient presentation flags. It is never persisted.
type UIState struct {
	ActiveTab              string `json:"activeTab"`
	SettingsOpen           bool   `json:"settingsOpen"`
	SelectedConversationID string `json:"selectedConversationId"`
	SearchQuery            string `json:"searchQuery"`
	SidebarCollapsed       bool   `json:"sidebarCollapsed"`
}

// DefaultUIState returns the initial UI flags.
func DefaultUIState() UIState {
	return UIState{ActiveTab: TabConversations}
}

// UIStatePatch lists UI fields to overwrite. Nil fields are left untouched.
type UIStatePatch struct {
	ActiveTab              *string
	SettingsOpen           *bool
	SelectedConversationID *string
	SearchQuery            *string
	SidebarCollapsed       *bool
}

// Apply shallow-merges the patch into u.
func (p UIStatePatch) Apply(u UIState) UIState {
	setString(&u.ActiveTab, p.ActiveTab)
	setBool(&u.SettingsOpen, p.SettingsOpen)
	setString(&u.SelectedConversationID, p.SelectedConversationID)
	setString(&u.SearchQuery, p.SearchQuery)
	setBool(&u.SidebarCollapsed, p.SidebarCollapsed)
	return u
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
