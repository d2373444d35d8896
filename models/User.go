package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username       string `json:"username" gorm:"uniqueIndex;size:30"`
	DisplayName    string `json:"displayName" gorm:"size:50"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture"`
	Bio            string `json:"bio" gorm:"size:500"`

	// Bottle cap balance. Mutated only through the ledger service so the
	// transaction log always agrees with it.
	BottleCaps int64 `json:"bottleCaps" gorm:"not null;default:0"`

	AccountStatus string `json:"accountStatus" gorm:"size:24;default:ACTIVE;index"` // ACTIVE, SUSPENDED, PENDING_VERIFICATION, BANNED
	Role          string `json:"role" gorm:"type:varchar(20);default:user;index"`   // user, admin, super_admin

	// Nullable so accounts created before a code is assigned do not collide
	// on the unique index.
	ReferralCode *string `json:"referralCode" gorm:"uniqueIndex;size:16"`

	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`
}

// Custom JSON marshaling so the push token JSON column serializes as an array
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.PushTokens != nil {
		var tokens []string
		if err := json.Unmarshal(u.PushTokens, &tokens); err == nil {
			aux.PushTokens = tokens
		}
	}

	return json.Marshal(aux)
}

// UserSummary is the projection embedded in expedition and leaderboard payloads.
type UserSummary struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	ProfilePicture string `json:"profilePicture"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		ProfilePicture: u.ProfilePicture,
	}
}
