package models

import (
	"time"
)

// ExpeditionStatus is the lifecycle state of an expedition. It only moves
// forward: DRAFT -> PLANNED -> IN_PROGRESS -> COMPLETED, with CANCELLED
// reachable from any non-terminal state.
type ExpeditionStatus string

const (
	ExpeditionDraft      ExpeditionStatus = "DRAFT"
	ExpeditionPlanned    ExpeditionStatus = "PLANNED"
	ExpeditionInProgress ExpeditionStatus = "IN_PROGRESS"
	ExpeditionCompleted  ExpeditionStatus = "COMPLETED"
	ExpeditionCancelled  ExpeditionStatus = "CANCELLED"
)

func (s ExpeditionStatus) Terminal() bool {
	return s == ExpeditionCompleted || s == ExpeditionCancelled
}

type ExpeditionType string

const (
	ExpeditionSolo ExpeditionType = "SOLO"
	ExpeditionTeam ExpeditionType = "TEAM"
)

func (t ExpeditionType) Valid() bool {
	return t == ExpeditionSolo || t == ExpeditionTeam
}

type ParticipantRole string

const (
	RoleCreator     ParticipantRole = "CREATOR"
	RoleParticipant ParticipantRole = "PARTICIPANT"
)

type ParticipantStatus string

const (
	ParticipantInvited  ParticipantStatus = "INVITED"
	ParticipantAccepted ParticipantStatus = "ACCEPTED"
	ParticipantDeclined ParticipantStatus = "DECLINED"
)

type VendorStopStatus string

const (
	StopPlanned VendorStopStatus = "PLANNED"
	StopVisited VendorStopStatus = "VISITED"
	StopSkipped VendorStopStatus = "SKIPPED"
)

type Expedition struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	CreatorID uint `json:"creatorID" gorm:"not null;index"`
	Creator   User `json:"creator" gorm:"foreignKey:CreatorID"`

	Type        ExpeditionType `json:"type" gorm:"size:8;not null"`
	Title       string         `json:"title" gorm:"not null;size:100"`
	Description string         `json:"description" gorm:"size:500"`

	PlannedDate time.Time `json:"plannedDate" gorm:"index"`
	StartTime   string    `json:"startTime" gorm:"size:5"` // "HH:MM"
	CoverImage  string    `json:"coverImage"`

	MaxParticipants int `json:"maxParticipants" gorm:"default:10"`

	// No column default here: GORM drops zero values for defaulted columns
	// on insert, which would turn an explicit false back into true.
	IsPublic bool `json:"isPublic" gorm:"not null"`

	// Fixed at creation; the stop set never changes afterwards.
	VendorCount int `json:"vendorCount" gorm:"not null"`

	Status ExpeditionStatus `json:"status" gorm:"size:16;index;default:DRAFT"`

	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`

	ActualDurationMins   int     `json:"actualDurationMins"`
	TotalSpent           float64 `json:"totalSpent"`
	DistanceWalkedMeters int     `json:"distanceWalkedMeters"`
	BottleCapsEarned     int64   `json:"bottleCapsEarned"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Participants []ExpeditionParticipant `json:"-" gorm:"foreignKey:ExpeditionID"`
	Vendors      []ExpeditionVendor      `json:"-" gorm:"foreignKey:ExpeditionID"`
}

type ExpeditionParticipant struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	ExpeditionID uint       `json:"expeditionID" gorm:"not null;uniqueIndex:idx_expedition_user"`
	Expedition   Expedition `json:"-" gorm:"foreignKey:ExpeditionID"`

	UserID uint `json:"userID" gorm:"not null;uniqueIndex:idx_expedition_user;index"`
	User   User `json:"user" gorm:"foreignKey:UserID"`

	Role     ParticipantRole   `json:"role" gorm:"size:16"`
	Status   ParticipantStatus `json:"status" gorm:"size:16;index"`
	JoinedAt *time.Time        `json:"joinedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ExpeditionVendor struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	ExpeditionID uint       `json:"expeditionID" gorm:"not null;uniqueIndex:idx_expedition_vendor"`
	Expedition   Expedition `json:"-" gorm:"foreignKey:ExpeditionID"`

	VendorID uint   `json:"vendorID" gorm:"not null;uniqueIndex:idx_expedition_vendor"`
	Vendor   Vendor `json:"vendor" gorm:"foreignKey:VendorID"`

	OrderIndex int              `json:"orderIndex" gorm:"not null"`
	Status     VendorStopStatus `json:"status" gorm:"size:16;default:PLANNED"`

	VisitedAt       *time.Time `json:"visitedAt"`
	Notes           string     `json:"notes" gorm:"size:500"`
	RatingSubmitted bool       `json:"ratingSubmitted" gorm:"default:false"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
