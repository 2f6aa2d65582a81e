package store

import (
	"context"

	"github.com/evolearn/studyhub/internal/model"
)

func (g *GormStore) CreateEvent(ctx context.Context, event *model.Event) error {
	return g.db.WithContext(ctx).Create(event).Error
}

func (g *GormStore) ListShareEvents(ctx context.Context, shareID uint, limit, offset int) ([]*model.EventEntry, int64, error) {
	var total int64
	err := g.db.WithContext(ctx).Model(&model.Event{}).Where("share_id = ?", shareID).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var events []*model.EventEntry
	err = g.db.WithContext(ctx).
		Table("events").
		Select("events.*, users.name AS user_name, users.email AS user_email").
		Joins("LEFT JOIN users ON users.id = events.user_id").
		Where("events.share_id = ?", shareID).
		Order("events.created_at DESC, events.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(&events).Error
	if err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
