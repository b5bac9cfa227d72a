package domain

import "time"

// GatewayConfig is the tenant-wide messaging gateway endpoint configuration.
// Exactly one active record is used; every gateway call snapshots it at start.
type GatewayConfig struct {
	ID             int64     `json:"id,string" gorm:"primaryKey"`
	ServerURL      string    `json:"server_url"`
	ApiKey         string    `json:"api_key"`
	WebhookBaseURL string    `json:"webhook_base_url"`
	Active         bool      `json:"active" gorm:"index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (GatewayConfig) TableName() string {
	return "gateway_config"
}

// Configured reports whether the record carries enough to call the gateway.
func (c *GatewayConfig) Configured() bool {
	return c != nil && c.ServerURL != "" && c.ApiKey != ""
}
