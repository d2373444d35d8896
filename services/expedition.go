package services

import (
	"fmt"
	"math"
	"time"

	"github.com/murali-mp/raastaa-backend/models"
	"github.com/murali-mp/raastaa-backend/utils"

	"gorm.io/gorm"
)

const (
	minVendorStops     = 1
	maxVendorStops     = 20
	maxParticipantsCap = 50
)

// ExpeditionService drives the expedition lifecycle from draft through
// completion and hands out the rewards tied to it. State transitions run as
// guarded updates inside transactions so concurrent calls cannot double a
// transition or its payout.
type ExpeditionService struct {
	db       *gorm.DB
	notifier *NotificationService
	now      func() time.Time
}

func NewExpeditionService(db *gorm.DB, notifier *NotificationService) *ExpeditionService {
	return &ExpeditionService{db: db, notifier: notifier, now: time.Now}
}

type CreateExpeditionInput struct {
	Type            models.ExpeditionType
	Title           string
	Description     string
	PlannedDate     time.Time
	StartTime       string
	CoverImage      string
	MaxParticipants int
	IsPublic        *bool
	VendorIDs       []uint
}

// Create builds a new DRAFT expedition with its vendor stops and enrolls the
// creator as an accepted participant, all in one transaction.
func (s *ExpeditionService) Create(creatorID uint, input CreateExpeditionInput) (*models.Expedition, error) {
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown expedition type %q", ErrValidation, input.Type)
	}

	vendorIDs := dedupeIDs(input.VendorIDs)
	if len(vendorIDs) < minVendorStops || len(vendorIDs) > maxVendorStops {
		return nil, fmt.Errorf("%w: an expedition needs between %d and %d vendor stops", ErrValidation, minVendorStops, maxVendorStops)
	}

	maxParticipants := input.MaxParticipants
	if maxParticipants == 0 {
		maxParticipants = 10
	}
	if maxParticipants < 1 || maxParticipants > maxParticipantsCap {
		return nil, fmt.Errorf("%w: max participants must be between 1 and %d", ErrValidation, maxParticipantsCap)
	}

	var vendorCount int64
	if err := s.db.Model(&models.Vendor{}).Where("id IN ?", vendorIDs).Count(&vendorCount).Error; err != nil {
		return nil, err
	}
	if int(vendorCount) != len(vendorIDs) {
		return nil, fmt.Errorf("%w: one or more vendors do not exist", ErrValidation)
	}

	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}

	expedition := models.Expedition{
		CreatorID:       creatorID,
		Type:            input.Type,
		Title:           input.Title,
		Description:     input.Description,
		PlannedDate:     input.PlannedDate,
		StartTime:       input.StartTime,
		CoverImage:      input.CoverImage,
		MaxParticipants: maxParticipants,
		IsPublic:        isPublic,
		VendorCount:     len(vendorIDs),
		Status:          models.ExpeditionDraft,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&expedition).Error; err != nil {
			return err
		}

		now := s.now()
		creator := models.ExpeditionParticipant{
			ExpeditionID: expedition.ID,
			UserID:       creatorID,
			Role:         models.RoleCreator,
			Status:       models.ParticipantAccepted,
			JoinedAt:     &now,
		}
		if err := tx.Create(&creator).Error; err != nil {
			return err
		}

		stops := make([]models.ExpeditionVendor, 0, len(vendorIDs))
		for i, vendorID := range vendorIDs {
			stops = append(stops, models.ExpeditionVendor{
				ExpeditionID: expedition.ID,
				VendorID:     vendorID,
				OrderIndex:   i,
				Status:       models.StopPlanned,
			})
		}
		return tx.Create(&stops).Error
	})
	if err != nil {
		return nil, err
	}
	return &expedition, nil
}

type ParticipantView struct {
	ID       uint                     `json:"id"`
	User     models.UserSummary       `json:"user"`
	Role     models.ParticipantRole   `json:"role"`
	Status   models.ParticipantStatus `json:"status"`
	JoinedAt *time.Time               `json:"joinedAt"`
}

type VendorStopView struct {
	ID              uint                    `json:"id"`
	Vendor          models.VendorSummary    `json:"vendor"`
	OrderIndex      int                     `json:"orderIndex"`
	Status          models.VendorStopStatus `json:"status"`
	VisitedAt       *time.Time              `json:"visitedAt"`
	Notes           string                  `json:"notes"`
	RatingSubmitted bool                    `json:"ratingSubmitted"`
}

type ExpeditionDetail struct {
	models.Expedition
	CreatorSummary models.UserSummary        `json:"creator"`
	Participants   []ParticipantView         `json:"participants"`
	VendorStops    []VendorStopView          `json:"vendorStops"`
	IsCreator      bool                      `json:"is_creator"`
	InviteStatus   *models.ParticipantStatus `json:"invite_status,omitempty"`
}

// GetByID returns the full expedition view. Private expeditions are visible
// only to the creator and to users holding a participant row.
func (s *ExpeditionService) GetByID(viewerID, expeditionID uint) (*ExpeditionDetail, error) {
	var expedition models.Expedition
	err := s.db.
		Preload("Creator").
		Preload("Participants.User").
		Preload("Vendors", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC") }).
		Preload("Vendors.Vendor").
		First(&expedition, expeditionID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: expedition %d", ErrNotFound, expeditionID)
		}
		return nil, err
	}

	detail := ExpeditionDetail{
		Expedition:     expedition,
		CreatorSummary: expedition.Creator.Summary(),
		IsCreator:      expedition.CreatorID == viewerID,
		Participants:   make([]ParticipantView, 0, len(expedition.Participants)),
		VendorStops:    make([]VendorStopView, 0, len(expedition.Vendors)),
	}

	var viewerRow *models.ExpeditionParticipant
	for i := range expedition.Participants {
		p := &expedition.Participants[i]
		if p.UserID == viewerID {
			viewerRow = p
		}
		if p.Status == models.ParticipantDeclined {
			continue
		}
		detail.Participants = append(detail.Participants, ParticipantView{
			ID:       p.ID,
			User:     p.User.Summary(),
			Role:     p.Role,
			Status:   p.Status,
			JoinedAt: p.JoinedAt,
		})
	}

	if !expedition.IsPublic && !detail.IsCreator {
		if viewerRow == nil || viewerRow.Status == models.ParticipantDeclined {
			return nil, fmt.Errorf("%w: expedition is private", ErrForbidden)
		}
	}
	if viewerRow != nil {
		status := viewerRow.Status
		detail.InviteStatus = &status
	}

	for _, v := range expedition.Vendors {
		detail.VendorStops = append(detail.VendorStops, VendorStopView{
			ID:              v.ID,
			Vendor:          v.Vendor.Summary(),
			OrderIndex:      v.OrderIndex,
			Status:          v.Status,
			VisitedAt:       v.VisitedAt,
			Notes:           v.Notes,
			RatingSubmitted: v.RatingSubmitted,
		})
	}

	return &detail, nil
}

type UpdateExpeditionInput struct {
	Title           *string
	Description     *string
	PlannedDate     *time.Time
	StartTime       *string
	CoverImage      *string
	MaxParticipants *int
	IsPublic        *bool
}

// Update edits an expedition's metadata. Only the creator may edit, and only
// while the expedition is DRAFT or PLANNED. The vendor stop set is fixed at
// creation and cannot be edited.
func (s *ExpeditionService) Update(userID, expeditionID uint, input UpdateExpeditionInput) (*models.Expedition, error) {
	expedition, err := s.load(expeditionID)
	if err != nil {
		return nil, err
	}
	if expedition.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the creator can edit an expedition", ErrForbidden)
	}
	if expedition.Status != models.ExpeditionDraft && expedition.Status != models.ExpeditionPlanned {
		return nil, fmt.Errorf("%w: cannot edit a %s expedition", ErrInvalidState, expedition.Status)
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.PlannedDate != nil {
		updates["planned_date"] = *input.PlannedDate
	}
	if input.StartTime != nil {
		updates["start_time"] = *input.StartTime
	}
	if input.CoverImage != nil {
		updates["cover_image"] = *input.CoverImage
	}
	if input.MaxParticipants != nil {
		if *input.MaxParticipants < 1 || *input.MaxParticipants > maxParticipantsCap {
			return nil, fmt.Errorf("%w: max participants must be between 1 and %d", ErrValidation, maxParticipantsCap)
		}
		updates["max_participants"] = *input.MaxParticipants
	}
	if input.IsPublic != nil {
		updates["is_public"] = *input.IsPublic
	}
	if len(updates) == 0 {
		return expedition, nil
	}

	if err := s.db.Model(expedition).Updates(updates).Error; err != nil {
		return nil, err
	}
	return expedition, nil
}

// Publish moves a DRAFT expedition to PLANNED, making it joinable.
func (s *ExpeditionService) Publish(userID, expeditionID uint) (*models.Expedition, error) {
	expedition, err := s.load(expeditionID)
	if err != nil {
		return nil, err
	}
	if expedition.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the creator can publish", ErrForbidden)
	}
	if expedition.PlannedDate.IsZero() {
		return nil, fmt.Errorf("%w: a planned date is required before publishing", ErrValidation)
	}

	res := s.db.Model(&models.Expedition{}).
		Where("id = ? AND status = ?", expeditionID, models.ExpeditionDraft).
		Update("status", models.ExpeditionPlanned)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: only a DRAFT expedition can be published", ErrInvalidState)
	}

	expedition.Status = models.ExpeditionPlanned
	return expedition, nil
}

// Start moves a PLANNED expedition to IN_PROGRESS and stamps the start time.
func (s *ExpeditionService) Start(userID, expeditionID uint) (*models.Expedition, error) {
	expedition, err := s.load(expeditionID)
	if err != nil {
		return nil, err
	}
	if expedition.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the creator can start the expedition", ErrForbidden)
	}

	now := s.now()
	res := s.db.Model(&models.Expedition{}).
		Where("id = ? AND status = ?", expeditionID, models.ExpeditionPlanned).
		Updates(map[string]interface{}{"status": models.ExpeditionInProgress, "started_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: only a PLANNED expedition can be started", ErrInvalidState)
	}

	expedition.Status = models.ExpeditionInProgress
	expedition.StartedAt = &now

	events := s.participantEvents(expeditionID, userID, models.NotifyExpeditionUpdate,
		"Expedition started", fmt.Sprintf("%q is underway. Time to eat!", expedition.Title))
	s.notifier.Dispatch(events)

	return expedition, nil
}

// Cancel terminates a non-terminal expedition. No rewards are paid.
func (s *ExpeditionService) Cancel(userID, expeditionID uint) (*models.Expedition, error) {
	expedition, err := s.load(expeditionID)
	if err != nil {
		return nil, err
	}
	if expedition.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the creator can cancel the expedition", ErrForbidden)
	}

	res := s.db.Model(&models.Expedition{}).
		Where("id = ? AND status IN ?", expeditionID,
			[]models.ExpeditionStatus{models.ExpeditionDraft, models.ExpeditionPlanned, models.ExpeditionInProgress}).
		Update("status", models.ExpeditionCancelled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: expedition is already finished", ErrInvalidState)
	}

	expedition.Status = models.ExpeditionCancelled

	events := s.participantEvents(expeditionID, userID, models.NotifyExpeditionUpdate,
		"Expedition cancelled", fmt.Sprintf("%q was cancelled by its creator.", expedition.Title))
	s.notifier.Dispatch(events)

	return expedition, nil
}

type CheckInResult struct {
	AlreadyCheckedIn bool  `json:"already_checked_in"`
	CapsAwarded      int64 `json:"caps_awarded"`
	VisitedCount     int   `json:"visited_count"`
}

// CheckIn marks a vendor stop as visited and pays the check-in bonus to every
// accepted participant. Checking in at an already visited stop is a no-op
// that reports success, so a retried request never pays twice.
func (s *ExpeditionService) CheckIn(userID, expeditionID, vendorID uint, notes string) (*CheckInResult, error) {
	var result CheckInResult
	var events []NotificationEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var expedition models.Expedition
		if err := tx.First(&expedition, expeditionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: expedition %d", ErrNotFound, expeditionID)
			}
			return err
		}
		if expedition.Status != models.ExpeditionInProgress {
			return fmt.Errorf("%w: check-ins are only allowed while the expedition is in progress", ErrInvalidState)
		}

		var membership models.ExpeditionParticipant
		err := tx.Where("expedition_id = ? AND user_id = ? AND status = ?",
			expeditionID, userID, models.ParticipantAccepted).First(&membership).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: only accepted participants can check in", ErrForbidden)
			}
			return err
		}

		var stop models.ExpeditionVendor
		err = tx.Where("expedition_id = ? AND vendor_id = ?", expeditionID, vendorID).First(&stop).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: vendor %d is not a stop on this expedition", ErrNotFound, vendorID)
			}
			return err
		}

		if stop.Status == models.StopVisited {
			result.AlreadyCheckedIn = true
			var visited int64
			if err := tx.Model(&models.ExpeditionVendor{}).
				Where("expedition_id = ? AND status = ?", expeditionID, models.StopVisited).
				Count(&visited).Error; err != nil {
				return err
			}
			result.VisitedCount = int(visited)
			return nil
		}

		now := s.now()
		updates := map[string]interface{}{"status": models.StopVisited, "visited_at": now}
		if notes != "" {
			updates["notes"] = notes
		}
		res := tx.Model(&models.ExpeditionVendor{}).
			Where("id = ? AND status <> ?", stop.ID, models.StopVisited).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost the race to another check-in
			result.AlreadyCheckedIn = true
			return nil
		}

		var members []models.ExpeditionParticipant
		if err := tx.Where("expedition_id = ? AND status = ?", expeditionID, models.ParticipantAccepted).
			Find(&members).Error; err != nil {
			return err
		}
		for _, m := range members {
			if _, err := grantTx(tx, m.UserID, RewardCheckInBonus, models.ActionExpeditionCheckIn,
				models.RefExpedition, expeditionID, "Vendor check-in bonus"); err != nil {
				return err
			}
			if m.UserID != userID {
				events = append(events, NotificationEvent{
					UserID:  m.UserID,
					Type:    models.NotifyBottleCaps,
					Title:   "Bottle caps earned",
					Message: fmt.Sprintf("Your crew checked in on %q. +%d caps!", expedition.Title, RewardCheckInBonus),
					RefType: "expedition",
					RefID:   expeditionID,
				})
			}
		}

		result.CapsAwarded = RewardCheckInBonus
		var visited int64
		if err := tx.Model(&models.ExpeditionVendor{}).
			Where("expedition_id = ? AND status = ?", expeditionID, models.StopVisited).
			Count(&visited).Error; err != nil {
			return err
		}
		result.VisitedCount = int(visited)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(events)
	return &result, nil
}

// Skip marks a planned vendor stop as skipped. Creator only, while the
// expedition is in progress. Skipped stops do not count toward rewards.
func (s *ExpeditionService) Skip(userID, expeditionID, vendorID uint) error {
	expedition, err := s.load(expeditionID)
	if err != nil {
		return err
	}
	if expedition.CreatorID != userID {
		return fmt.Errorf("%w: only the creator can skip a stop", ErrForbidden)
	}
	if expedition.Status != models.ExpeditionInProgress {
		return fmt.Errorf("%w: stops can only be skipped while the expedition is in progress", ErrInvalidState)
	}

	res := s.db.Model(&models.ExpeditionVendor{}).
		Where("expedition_id = ? AND vendor_id = ? AND status = ?", expeditionID, vendorID, models.StopPlanned).
		Update("status", models.StopSkipped)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: stop is not in a skippable state", ErrInvalidState)
	}
	return nil
}

type CompleteExpeditionInput struct {
	TotalSpent           float64
	DistanceWalkedMeters int
}

type CompleteResult struct {
	Expedition      *models.Expedition `json:"expedition"`
	CapsPerMember   int64              `json:"caps_per_member"`
	MembersRewarded int                `json:"members_rewarded"`
	VisitedStops    int                `json:"visited_stops"`
	DurationMinutes int                `json:"duration_minutes"`
}

// Complete finishes an in-progress expedition and settles rewards. Every
// accepted participant earns the type base plus a per-visited-stop bonus.
// The status flip and every payout share one transaction, and the guarded
// update makes a second Complete call fail instead of paying twice.
func (s *ExpeditionService) Complete(userID, expeditionID uint, input CompleteExpeditionInput) (*CompleteResult, error) {
	var result CompleteResult
	var events []NotificationEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var expedition models.Expedition
		if err := tx.First(&expedition, expeditionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: expedition %d", ErrNotFound, expeditionID)
			}
			return err
		}
		if expedition.CreatorID != userID {
			return fmt.Errorf("%w: only the creator can complete the expedition", ErrForbidden)
		}

		var visited int64
		if err := tx.Model(&models.ExpeditionVendor{}).
			Where("expedition_id = ? AND status = ?", expeditionID, models.StopVisited).
			Count(&visited).Error; err != nil {
			return err
		}

		now := s.now()
		duration := 0
		if expedition.StartedAt != nil {
			duration = int(math.Round(now.Sub(*expedition.StartedAt).Minutes()))
		}

		base := RewardExpeditionSoloBase
		if expedition.Type == models.ExpeditionTeam {
			base = RewardExpeditionTeamBase
		}
		reward := base + visited*RewardExpeditionPerVendor

		res := tx.Model(&models.Expedition{}).
			Where("id = ? AND status = ?", expeditionID, models.ExpeditionInProgress).
			Updates(map[string]interface{}{
				"status":                 models.ExpeditionCompleted,
				"completed_at":           now,
				"actual_duration_mins":   duration,
				"total_spent":            input.TotalSpent,
				"distance_walked_meters": input.DistanceWalkedMeters,
				"bottle_caps_earned":     reward,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: only an in-progress expedition can be completed", ErrInvalidState)
		}

		var members []models.ExpeditionParticipant
		if err := tx.Where("expedition_id = ? AND status = ?", expeditionID, models.ParticipantAccepted).
			Find(&members).Error; err != nil {
			return err
		}
		for _, m := range members {
			if _, err := grantTx(tx, m.UserID, reward, models.ActionExpeditionComplete,
				models.RefExpedition, expeditionID,
				fmt.Sprintf("Completed expedition %q (%d stops visited)", expedition.Title, visited)); err != nil {
				return err
			}
			if m.UserID != userID {
				events = append(events, NotificationEvent{
					UserID:  m.UserID,
					Type:    models.NotifyBottleCaps,
					Title:   "Expedition complete",
					Message: fmt.Sprintf("%q is done. You earned %d bottle caps!", expedition.Title, reward),
					RefType: "expedition",
					RefID:   expeditionID,
				})
			}
		}

		expedition.Status = models.ExpeditionCompleted
		expedition.CompletedAt = &now
		expedition.ActualDurationMins = duration
		expedition.TotalSpent = input.TotalSpent
		expedition.DistanceWalkedMeters = input.DistanceWalkedMeters
		expedition.BottleCapsEarned = reward

		result = CompleteResult{
			Expedition:      &expedition,
			CapsPerMember:   reward,
			MembersRewarded: len(members),
			VisitedStops:    int(visited),
			DurationMinutes: duration,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(events)
	return &result, nil
}

type InviteResult struct {
	Invited []uint `json:"invited"`
	Skipped []uint `json:"skipped"`
}

// Invite adds pending invitations to a team expedition. Capacity counts
// accepted and still-pending participants, so outstanding invites reserve
// seats.
func (s *ExpeditionService) Invite(userID, expeditionID uint, userIDs []uint) (*InviteResult, error) {
	expedition, err := s.load(expeditionID)
	if err != nil {
		return nil, err
	}
	if expedition.CreatorID != userID {
		return nil, fmt.Errorf("%w: only the creator can invite", ErrForbidden)
	}
	if expedition.Type != models.ExpeditionTeam {
		return nil, fmt.Errorf("%w: solo expeditions cannot have invites", ErrValidation)
	}
	if expedition.Status != models.ExpeditionDraft && expedition.Status != models.ExpeditionPlanned {
		return nil, fmt.Errorf("%w: invites are only allowed before the expedition starts", ErrInvalidState)
	}

	inviteIDs := dedupeIDs(userIDs)
	if len(inviteIDs) == 0 {
		return nil, fmt.Errorf("%w: no users to invite", ErrValidation)
	}

	var result InviteResult
	var events []NotificationEvent

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var userCount int64
		if err := tx.Model(&models.User{}).Where("id IN ?", inviteIDs).Count(&userCount).Error; err != nil {
			return err
		}
		if int(userCount) != len(inviteIDs) {
			return fmt.Errorf("%w: one or more users do not exist", ErrValidation)
		}

		var existing []models.ExpeditionParticipant
		if err := tx.Where("expedition_id = ?", expeditionID).Find(&existing).Error; err != nil {
			return err
		}

		taken := 0
		existingByUser := make(map[uint]models.ParticipantStatus, len(existing))
		for _, p := range existing {
			existingByUser[p.UserID] = p.Status
			if p.Status == models.ParticipantAccepted || p.Status == models.ParticipantInvited {
				taken++
			}
		}

		var fresh []uint
		for _, id := range inviteIDs {
			if _, ok := existingByUser[id]; ok {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			fresh = append(fresh, id)
		}

		if taken+len(fresh) > expedition.MaxParticipants {
			return fmt.Errorf("%w: expedition only has room for %d participants", ErrCapacityExceeded, expedition.MaxParticipants)
		}

		for _, id := range fresh {
			row := models.ExpeditionParticipant{
				ExpeditionID: expeditionID,
				UserID:       id,
				Role:         models.RoleParticipant,
				Status:       models.ParticipantInvited,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			result.Invited = append(result.Invited, id)
			events = append(events, NotificationEvent{
				UserID:  id,
				Type:    models.NotifyExpeditionInvite,
				Title:   "Expedition invite",
				Message: fmt.Sprintf("You were invited to join %q.", expedition.Title),
				RefType: "expedition",
				RefID:   expeditionID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(events)
	return &result, nil
}

type RespondResult struct {
	AlreadyResponded bool                     `json:"already_responded"`
	Status           models.ParticipantStatus `json:"status"`
}

// Respond accepts or declines a pending invitation. Responding to an invite
// that was already answered reports the current state instead of failing, so
// a double tap is harmless.
func (s *ExpeditionService) Respond(userID, expeditionID uint, accept bool) (*RespondResult, error) {
	newStatus := models.ParticipantDeclined
	updates := map[string]interface{}{"status": models.ParticipantDeclined}
	if accept {
		newStatus = models.ParticipantAccepted
		now := s.now()
		updates = map[string]interface{}{"status": models.ParticipantAccepted, "joined_at": &now}
	}

	res := s.db.Model(&models.ExpeditionParticipant{}).
		Where("expedition_id = ? AND user_id = ? AND status = ?", expeditionID, userID, models.ParticipantInvited).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		if accept {
			var expedition models.Expedition
			if err := s.db.First(&expedition, expeditionID).Error; err == nil {
				s.notifier.Dispatch([]NotificationEvent{{
					UserID:  expedition.CreatorID,
					Type:    models.NotifyExpeditionUpdate,
					Title:   "Invite accepted",
					Message: fmt.Sprintf("Someone joined your expedition %q.", expedition.Title),
					RefType: "expedition",
					RefID:   expeditionID,
				}})
			}
		}
		return &RespondResult{Status: newStatus}, nil
	}

	var row models.ExpeditionParticipant
	err := s.db.Where("expedition_id = ? AND user_id = ?", expeditionID, userID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: no invitation for this expedition", ErrNotFound)
		}
		return nil, err
	}
	return &RespondResult{AlreadyResponded: true, Status: row.Status}, nil
}

type JoinResult struct {
	AlreadyJoined bool `json:"already_joined"`
}

// Join enrolls the caller in a public team expedition that is open for
// joining. A pending invite is treated as an acceptance.
func (s *ExpeditionService) Join(userID, expeditionID uint) (*JoinResult, error) {
	expedition, err := s.load(expeditionID)
	if err != nil {
		return nil, err
	}
	if !expedition.IsPublic {
		return nil, fmt.Errorf("%w: this expedition is invite only", ErrForbidden)
	}
	if expedition.Type != models.ExpeditionTeam {
		return nil, fmt.Errorf("%w: solo expeditions cannot be joined", ErrValidation)
	}
	if expedition.Status != models.ExpeditionPlanned {
		return nil, fmt.Errorf("%w: this expedition is not open for joining", ErrInvalidState)
	}

	var result JoinResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var row models.ExpeditionParticipant
		err := tx.Where("expedition_id = ? AND user_id = ?", expeditionID, userID).First(&row).Error
		now := s.now()
		switch {
		case err == nil && row.Status == models.ParticipantAccepted:
			result.AlreadyJoined = true
			return nil
		case err == nil && row.Status == models.ParticipantInvited:
			// pending invite; that seat is already reserved
			return tx.Model(&row).
				Updates(map[string]interface{}{"status": models.ParticipantAccepted, "joined_at": &now}).Error
		case err != nil && err != gorm.ErrRecordNotFound:
			return err
		}

		// Fresh joiner, or someone who declined earlier and changed their
		// mind. Either way they take a new seat, so count capacity first.
		var taken int64
		if err := tx.Model(&models.ExpeditionParticipant{}).
			Where("expedition_id = ? AND status IN ?", expeditionID,
				[]models.ParticipantStatus{models.ParticipantAccepted, models.ParticipantInvited}).
			Count(&taken).Error; err != nil {
			return err
		}
		if int(taken) >= expedition.MaxParticipants {
			return fmt.Errorf("%w: expedition is full", ErrCapacityExceeded)
		}

		if err == nil {
			return tx.Model(&row).
				Updates(map[string]interface{}{"status": models.ParticipantAccepted, "joined_at": &now}).Error
		}

		return tx.Create(&models.ExpeditionParticipant{
			ExpeditionID: expeditionID,
			UserID:       userID,
			Role:         models.RoleParticipant,
			Status:       models.ParticipantAccepted,
			JoinedAt:     &now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyJoined {
		s.notifier.Dispatch([]NotificationEvent{{
			UserID:  expedition.CreatorID,
			Type:    models.NotifyExpeditionUpdate,
			Title:   "New crew member",
			Message: fmt.Sprintf("Someone joined your expedition %q.", expedition.Title),
			RefType: "expedition",
			RefID:   expeditionID,
		}})
	}
	return &result, nil
}

// Leave removes the caller from an expedition. Blocked while the crawl is
// actually running; the creator cannot leave their own expedition.
func (s *ExpeditionService) Leave(userID, expeditionID uint) error {
	expedition, err := s.load(expeditionID)
	if err != nil {
		return err
	}
	if expedition.CreatorID == userID {
		return fmt.Errorf("%w: the creator cannot leave; cancel the expedition instead", ErrValidation)
	}
	if expedition.Status == models.ExpeditionInProgress {
		return fmt.Errorf("%w: cannot leave while the expedition is in progress", ErrInvalidState)
	}

	res := s.db.Where("expedition_id = ? AND user_id = ?", expeditionID, userID).
		Delete(&models.ExpeditionParticipant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: you are not part of this expedition", ErrNotFound)
	}
	return nil
}

type ExpeditionListItem struct {
	models.Expedition
	CreatorSummary   models.UserSummary `json:"creator"`
	ParticipantCount int                `json:"participant_count"`
	IsCreator        bool               `json:"is_creator"`
}

type ExpeditionPage struct {
	Items      []ExpeditionListItem `json:"items"`
	NextCursor *string              `json:"nextCursor"`
	HasMore    bool                 `json:"hasMore"`
}

type ListFilter struct {
	Status models.ExpeditionStatus
	Type   models.ExpeditionType
}

// GetUserExpeditions lists expeditions the user created or joined, newest
// planned date first.
func (s *ExpeditionService) GetUserExpeditions(userID uint, filter ListFilter, cursor string, limit int) (*ExpeditionPage, error) {
	if limit < 1 || limit > 50 {
		limit = 20
	}

	query := s.db.Model(&models.Expedition{}).
		Preload("Creator").
		Joins("JOIN expedition_participants ep ON ep.expedition_id = expeditions.id").
		Where("ep.user_id = ? AND ep.status = ?", userID, models.ParticipantAccepted).
		Order("expeditions.planned_date DESC, expeditions.id DESC").
		Limit(limit + 1)

	if filter.Status != "" {
		query = query.Where("expeditions.status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("expeditions.type = ?", filter.Type)
	}
	if id, ok := utils.DecodeCursor(cursor); ok && cursor != "" {
		var pivot models.Expedition
		if err := s.db.Select("id", "planned_date").First(&pivot, id).Error; err == nil {
			query = query.Where(
				"expeditions.planned_date < ? OR (expeditions.planned_date = ? AND expeditions.id < ?)",
				pivot.PlannedDate, pivot.PlannedDate, pivot.ID)
		}
	}

	var expeditions []models.Expedition
	if err := query.Find(&expeditions).Error; err != nil {
		return nil, err
	}

	return s.buildPage(userID, expeditions, limit)
}

type PendingInvite struct {
	Expedition ExpeditionListItem `json:"expedition"`
	InvitedAt  time.Time          `json:"invited_at"`
}

// GetPendingInvites lists the user's unanswered invitations, soonest first.
func (s *ExpeditionService) GetPendingInvites(userID uint) ([]PendingInvite, error) {
	var rows []models.ExpeditionParticipant
	err := s.db.
		Preload("Expedition.Creator").
		Joins("JOIN expeditions e ON e.id = expedition_participants.expedition_id").
		Where("expedition_participants.user_id = ? AND expedition_participants.status = ?", userID, models.ParticipantInvited).
		Where("e.status IN ?", []models.ExpeditionStatus{models.ExpeditionDraft, models.ExpeditionPlanned}).
		Order("e.planned_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	invites := make([]PendingInvite, 0, len(rows))
	for _, row := range rows {
		count, err := s.acceptedCount(row.ExpeditionID)
		if err != nil {
			return nil, err
		}
		invites = append(invites, PendingInvite{
			Expedition: ExpeditionListItem{
				Expedition:       row.Expedition,
				CreatorSummary:   row.Expedition.Creator.Summary(),
				ParticipantCount: count,
			},
			InvitedAt: row.CreatedAt,
		})
	}
	return invites, nil
}

type DiscoverItem struct {
	ExpeditionListItem
	SpotsAvailable int `json:"spots_available"`
}

type DiscoverPage struct {
	Items      []DiscoverItem `json:"items"`
	NextCursor *string        `json:"nextCursor"`
	HasMore    bool           `json:"hasMore"`
}

// Discover lists upcoming public team expeditions the user is not already
// part of, soonest first.
func (s *ExpeditionService) Discover(userID uint, cursor string, limit int) (*DiscoverPage, error) {
	if limit < 1 || limit > 50 {
		limit = 20
	}

	query := s.db.Model(&models.Expedition{}).
		Preload("Creator").
		Where("is_public = ? AND type = ? AND status = ?", true, models.ExpeditionTeam, models.ExpeditionPlanned).
		Where("planned_date >= ?", s.now().Truncate(24*time.Hour)).
		Where("id NOT IN (?)", s.db.Model(&models.ExpeditionParticipant{}).
			Select("expedition_id").Where("user_id = ?", userID)).
		Order("planned_date ASC, id ASC").
		Limit(limit + 1)

	if id, ok := utils.DecodeCursor(cursor); ok && cursor != "" {
		var pivot models.Expedition
		if err := s.db.Select("id", "planned_date").First(&pivot, id).Error; err == nil {
			query = query.Where(
				"planned_date > ? OR (planned_date = ? AND id > ?)",
				pivot.PlannedDate, pivot.PlannedDate, pivot.ID)
		}
	}

	var expeditions []models.Expedition
	if err := query.Find(&expeditions).Error; err != nil {
		return nil, err
	}

	hasMore := len(expeditions) > limit
	if hasMore {
		expeditions = expeditions[:limit]
	}

	items := make([]DiscoverItem, 0, len(expeditions))
	for i := range expeditions {
		e := expeditions[i]
		var taken int64
		if err := s.db.Model(&models.ExpeditionParticipant{}).
			Where("expedition_id = ? AND status IN ?", e.ID,
				[]models.ParticipantStatus{models.ParticipantAccepted, models.ParticipantInvited}).
			Count(&taken).Error; err != nil {
			return nil, err
		}
		spots := e.MaxParticipants - int(taken)
		if spots < 0 {
			spots = 0
		}
		accepted, err := s.acceptedCount(e.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, DiscoverItem{
			ExpeditionListItem: ExpeditionListItem{
				Expedition:       e,
				CreatorSummary:   e.Creator.Summary(),
				ParticipantCount: accepted,
			},
			SpotsAvailable: spots,
		})
	}

	var next *string
	if hasMore && len(items) > 0 {
		c := utils.EncodeCursor(items[len(items)-1].ID)
		next = &c
	}
	return &DiscoverPage{Items: items, NextCursor: next, HasMore: hasMore}, nil
}

func (s *ExpeditionService) load(expeditionID uint) (*models.Expedition, error) {
	var expedition models.Expedition
	if err := s.db.First(&expedition, expeditionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: expedition %d", ErrNotFound, expeditionID)
		}
		return nil, err
	}
	return &expedition, nil
}

func (s *ExpeditionService) acceptedCount(expeditionID uint) (int, error) {
	var count int64
	err := s.db.Model(&models.ExpeditionParticipant{}).
		Where("expedition_id = ? AND status = ?", expeditionID, models.ParticipantAccepted).
		Count(&count).Error
	return int(count), err
}

func (s *ExpeditionService) buildPage(viewerID uint, expeditions []models.Expedition, limit int) (*ExpeditionPage, error) {
	hasMore := len(expeditions) > limit
	if hasMore {
		expeditions = expeditions[:limit]
	}

	items := make([]ExpeditionListItem, 0, len(expeditions))
	for i := range expeditions {
		e := expeditions[i]
		count, err := s.acceptedCount(e.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, ExpeditionListItem{
			Expedition:       e,
			CreatorSummary:   e.Creator.Summary(),
			ParticipantCount: count,
			IsCreator:        e.CreatorID == viewerID,
		})
	}

	var next *string
	if hasMore && len(items) > 0 {
		c := utils.EncodeCursor(items[len(items)-1].ID)
		next = &c
	}
	return &ExpeditionPage{Items: items, NextCursor: next, HasMore: hasMore}, nil
}

// participantEvents builds notification events for every accepted participant
// except the acting user.
func (s *ExpeditionService) participantEvents(expeditionID, actorID uint, typ models.NotificationType, title, message string) []NotificationEvent {
	var members []models.ExpeditionParticipant
	if err := s.db.Where("expedition_id = ? AND status = ?", expeditionID, models.ParticipantAccepted).
		Find(&members).Error; err != nil {
		return nil
	}
	var events []NotificationEvent
	for _, m := range members {
		if m.UserID == actorID {
			continue
		}
		events = append(events, NotificationEvent{
			UserID:  m.UserID,
			Type:    typ,
			Title:   title,
			Message: message,
			RefType: "expedition",
			RefID:   expeditionID,
		})
	}
	return events
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
