package usecase

import (
	"context"
	"fmt"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	"RiskWatch/internal/repository"
)

type NotificationsUseCase struct {
	history *repository.NotificationHistory
}

func NewNotificationsUseCase(history *repository.NotificationHistory) *NotificationsUseCase {
	return &NotificationsUseCase{history: history}
}

// NotificationList is the history page plus the unread badge count.
type NotificationList struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func (uc *NotificationsUseCase) List(ctx context.Context, unreadOnly bool, limit int) NotificationList {
	items := uc.history.List(ctx, unreadOnly, limit)
	if items == nil {
		items = []models.Notification{}
	}
	return NotificationList{Items: items, Unread: uc.history.UnreadCount(ctx)}
}

func (uc *NotificationsUseCase) MarkRead(ctx context.Context, id string) error {
	if !uc.history.MarkRead(ctx, id) {
		return fmt.Errorf("notification %s: %w", id, domrepo.ErrNotFound)
	}
	return nil
}

func (uc *NotificationsUseCase) MarkAllRead(ctx context.Context) int {
	return uc.history.MarkAllRead(ctx)
}

func (uc *NotificationsUseCase) Clear(ctx context.Context) {
	uc.history.Clear(ctx)
}
