package services

import (
	"log"
	"time"

	"github.com/murali-mp/raastaa-backend/models"
	"github.com/murali-mp/raastaa-backend/utils"

	"gorm.io/gorm"
)

// NotificationEvent is a pending notification collected during a domain
// mutation. Events are plain data; they are dispatched only after the
// surrounding transaction has committed, so a sink failure can never roll
// back a committed mutation.
type NotificationEvent struct {
	UserID  uint
	Type    models.NotificationType
	Title   string
	Message string
	RefType string
	RefID   uint
}

// NotificationService persists in-app notifications and serves the
// notification inbox.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Dispatch writes notification rows for the given events. Best effort:
// failures are logged and swallowed.
func (ns *NotificationService) Dispatch(events []NotificationEvent) {
	for _, ev := range events {
		n := models.Notification{
			UserID:  ev.UserID,
			Type:    ev.Type,
			Title:   ev.Title,
			Message: ev.Message,
			RefType: ev.RefType,
			RefID:   ev.RefID,
		}
		if err := ns.db.Create(&n).Error; err != nil {
			log.Printf("failed to persist notification for user %d: %v", ev.UserID, err)
		}
	}
}

type NotificationPage struct {
	Items      []models.Notification `json:"items"`
	NextCursor *string               `json:"nextCursor"`
	HasMore    bool                  `json:"hasMore"`
}

// List returns the user's notifications, newest first, cursor-paginated.
func (ns *NotificationService) List(userID uint, cursor string, limit int) (*NotificationPage, error) {
	if limit < 1 || limit > 50 {
		limit = 20
	}

	query := ns.db.Where("user_id = ?", userID).Order("id DESC").Limit(limit + 1)
	if id, ok := utils.DecodeCursor(cursor); ok && cursor != "" {
		query = query.Where("id < ?", id)
	}

	var items []models.Notification
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	var next *string
	if hasMore && len(items) > 0 {
		c := utils.EncodeCursor(items[len(items)-1].ID)
		next = &c
	}

	return &NotificationPage{Items: items, NextCursor: next, HasMore: hasMore}, nil
}

// MarkRead marks one of the user's notifications as read.
func (ns *NotificationService) MarkRead(userID, notificationID uint) error {
	now := time.Now()
	res := ns.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
