package model

import "time"

// Server is a registered upstream Xtream panel.
type Server struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Session tracks one player viewing through a server.
type Session struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"server_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AppConfig holds the branding shown by the web player.
type AppConfig struct {
	AppName        string `json:"app_name"`
	PrimaryColor   string `json:"primary_color"`
	LogoURL        string `json:"logo_url"`
	WelcomeMessage string `json:"welcome_message"`
}

// DefaultAppConfig is served until an admin saves a config.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		AppName:      "Xtream Web",
		PrimaryColor: "#1f6feb",
	}
}
