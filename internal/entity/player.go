package entity

import "time"

type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Mark      string    `json:"mark"`
	Ready     bool      `json:"ready"`
	JoinedAt  time.Time `json:"joined_at"`
}
