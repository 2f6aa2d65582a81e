package store

import (
	"context"
	"time"

	"github.com/evolearn/studyhub/internal/model"
)

func (g *GormStore) CreateShare(ctx context.Context, share *model.Share) error {
	return g.db.WithContext(ctx).Create(share).Error
}

func (g *GormStore) GetShare(ctx context.Context, id uint) (*model.Share, error) {
	var share model.Share
	err := g.db.WithContext(ctx).First(&share, id).Error
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (g *GormStore) CreateShareNode(ctx context.Context, node *model.ShareNode) error {
	return g.db.WithContext(ctx).Create(node).Error
}

func (g *GormStore) ListShareNodes(ctx context.Context, shareID uint) ([]*model.ShareNode, error) {
	var nodes []*model.ShareNode
	err := g.db.WithContext(ctx).Where("share_id = ?", shareID).Order("id").Find(&nodes).Error
	return nodes, err
}

func (g *GormStore) ListShareNodesByDirectories(ctx context.Context, directoryIDs []uint) ([]*model.ShareNode, error) {
	var nodes []*model.ShareNode
	if len(directoryIDs) == 0 {
		return nodes, nil
	}
	err := g.db.WithContext(ctx).Where("directory_id IN ?", directoryIDs).Order("id").Find(&nodes).Error
	return nodes, err
}

func (g *GormStore) ListUserGrants(ctx context.Context, userID uint) ([]*model.ShareGrant, error) {
	var grants []*model.ShareGrant
	err := g.db.WithContext(ctx).
		Table("share_nodes").
		Select("share_nodes.share_id, share_nodes.directory_id, share_nodes.include_subtree, share_users.role").
		Joins("JOIN share_users ON share_users.share_id = share_nodes.share_id").
		Joins("JOIN shares ON shares.id = share_nodes.share_id AND shares.deleted_at IS NULL").
		Where("share_users.user_id = ?", userID).
		Scan(&grants).Error
	return grants, err
}

func (g *GormStore) GetShareUser(ctx context.Context, shareID, userID uint) (*model.ShareUser, error) {
	var member model.ShareUser
	err := g.db.WithContext(ctx).Where("share_id = ? AND user_id = ?", shareID, userID).First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (g *GormStore) CreateShareUser(ctx context.Context, member *model.ShareUser) error {
	return g.db.WithContext(ctx).Create(member).Error
}

func (g *GormStore) UpdateShareUserRole(ctx context.Context, shareID, userID uint, role model.Role, at time.Time) error {
	return g.db.WithContext(ctx).
		Model(&model.ShareUser{}).
		Where("share_id = ? AND user_id = ?", shareID, userID).
		Updates(map[string]any{"role": role, "updated_at": at}).Error
}

func (g *GormStore) DeleteShareUser(ctx context.Context, shareID, userID uint) (int64, error) {
	res := g.db.WithContext(ctx).Where("share_id = ? AND user_id = ?", shareID, userID).Delete(&model.ShareUser{})
	return res.RowsAffected, res.Error
}

func (g *GormStore) ListShareMembers(ctx context.Context, shareID uint) ([]*model.ShareMember, error) {
	var members []*model.ShareMember
	err := g.db.WithContext(ctx).
		Table("share_users").
		Select("share_users.user_id, users.name, users.email, share_users.role, share_users.invited_at, share_users.accepted_at").
		Joins("JOIN users ON users.id = share_users.user_id").
		Where("share_users.share_id = ?", shareID).
		Order("share_users.invited_at").
		Scan(&members).Error
	return members, err
}

func (g *GormStore) HasShareChangesSince(ctx context.Context, shareID uint, since time.Time) (bool, error) {
	db := g.db.WithContext(ctx)
	var count int64

	err := db.Model(&model.Event{}).Where("share_id = ? AND created_at > ?", shareID, since).Count(&count).Error
	if err != nil || count > 0 {
		return count > 0, err
	}

	err = db.Model(&model.ShareUser{}).Where("share_id = ? AND updated_at > ?", shareID, since).Count(&count).Error
	if err != nil || count > 0 {
		return count > 0, err
	}

	var dirIDs []uint
	err = db.Model(&model.ShareNode{}).Where("share_id = ?", shareID).Pluck("directory_id", &dirIDs).Error
	if err != nil || len(dirIDs) == 0 {
		return false, err
	}

	err = db.Unscoped().Model(&model.Directory{}).
		Where("(id IN ? OR parent_id IN ?) AND (updated_at > ? OR deleted_at > ?)", dirIDs, dirIDs, since, since).
		Count(&count).Error
	if err != nil || count > 0 {
		return count > 0, err
	}

	err = db.Unscoped().Model(&model.Document{}).
		Where("directory_id IN ? AND (updated_at > ? OR deleted_at > ?)", dirIDs, since, since).
		Count(&count).Error
	return count > 0, err
}
