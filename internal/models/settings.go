package models

import "time"

const (
	SettingsHomeBanner    = "homeBanner"
	SettingsAboutTimeline = "aboutTimeline"
	SettingsNotifications = "notifications"
	SettingsTodos         = "todos"
	SettingsWishlist      = "wishlist"
)

// SettingsDocument is a singleton blob for one area of site configuration.
type SettingsDocument struct {
	Key       string                 `bson:"_id" json:"key"`
	Value     map[string]interface{} `bson:"value" json:"value"`
	UpdatedAt time.Time              `bson:"updatedAt" json:"updatedAt"`
}
