package entity

// Identity is what the external login provider hands us. The core never
// inspects it beyond copying the display fields into a Player.
type Identity struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
