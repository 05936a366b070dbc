package models

import "time"

// TrackerConfig holds the Jira credentials. At most one row exists.
type TrackerConfig struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"not null" json:"email"`
	APIToken  string    `gorm:"not null" json:"-"`
	BaseURL   string    `gorm:"not null" json:"baseUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// TrackerConfigView is the client-visible form of TrackerConfig; the token is
// reduced to a presence flag.
type TrackerConfigView struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	BaseURL  string `json:"baseUrl"`
	HasToken bool   `json:"hasToken"`
}

func (c *TrackerConfig) View() TrackerConfigView {
	return TrackerConfigView{
		ID:       c.ID,
		Email:    c.Email,
		BaseURL:  c.BaseURL,
		HasToken: c.APIToken != "",
	}
}
