package domain

import "time"

// Instance connection statuses as reported by the gateway and stored locally.
const (
	StatusDisconnected = "disconnected"
	StatusConnecting   = "connecting"
	StatusQr           = "qr"
	StatusOpen         = "open"
	StatusClose        = "close"
)

// Instance is one logical WhatsApp connection on the messaging gateway.
// Name is the gateway-facing identifier and is immutable after creation.
type Instance struct {
	ID              int64      `json:"id,string" gorm:"primaryKey"`
	Name            string     `json:"name" gorm:"index"`
	Company         string     `json:"company"`
	Status          string     `json:"status" gorm:"index"`
	ConnectionState string     `json:"connection_state"` // mirrors Status on every write
	QrCode          string     `json:"qr_code" gorm:"type:text"`
	PhoneNumber     string     `json:"phone_number"`
	ProfileName     string     `json:"profile_name"`
	ProfilePicURL   string     `json:"profile_picture_url"`
	Active          bool       `json:"active" gorm:"index"`
	LastConnectedAt *time.Time `json:"last_connected_at"`
	UpdateSeq       int64      `json:"update_seq"` // highest reconcile sequence applied
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Instance) TableName() string {
	return "wa_instance"
}

// IsConnected reports whether the instance currently holds an open session.
func (i *Instance) IsConnected() bool {
	return i.Status == StatusOpen
}
