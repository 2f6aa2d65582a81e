package store

import (
	"context"

	"github.com/evolearn/studyhub/internal/model"
	"gorm.io/gorm"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(NewGormStore(tx))
	})
}

func (g *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	return g.db.WithContext(ctx).Create(user).Error
}

func (g *GormStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := g.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *GormStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := g.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *GormStore) GetUserByToken(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	if token == "" {
		return nil, gorm.ErrRecordNotFound
	}
	err := g.db.WithContext(ctx).Where("auth_token = ?", token).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *GormStore) CreateDirectory(ctx context.Context, dir *model.Directory) error {
	return g.db.WithContext(ctx).Create(dir).Error
}

func (g *GormStore) GetDirectory(ctx context.Context, id uint) (*model.Directory, error) {
	var dir model.Directory
	err := g.db.WithContext(ctx).First(&dir, id).Error
	if err != nil {
		return nil, err
	}
	return &dir, nil
}

func (g *GormStore) ListChildDirectories(ctx context.Context, parentID uint) ([]*model.Directory, error) {
	var dirs []*model.Directory
	err := g.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("name").Find(&dirs).Error
	return dirs, err
}

func (g *GormStore) UpdateDirectory(ctx context.Context, dir *model.Directory) error {
	return g.db.WithContext(ctx).Save(dir).Error
}

func (g *GormStore) DeleteDirectory(ctx context.Context, id uint) error {
	return g.db.WithContext(ctx).Delete(&model.Directory{}, id).Error
}

func (g *GormStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return g.db.WithContext(ctx).Create(doc).Error
}

func (g *GormStore) GetDocument(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	err := g.db.WithContext(ctx).First(&doc, id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (g *GormStore) FindDocument(ctx context.Context, ownerID uint, directoryID *uint, name string) (*model.Document, error) {
	var doc model.Document
	q := g.db.WithContext(ctx).Where("owner_id = ? AND display_name = ?", ownerID, name)
	if directoryID == nil {
		q = q.Where("directory_id IS NULL")
	} else {
		q = q.Where("directory_id = ?", *directoryID)
	}
	err := q.First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (g *GormStore) UpdateDocument(ctx context.Context, doc *model.Document) error {
	return g.db.WithContext(ctx).Save(doc).Error
}

func (g *GormStore) DeleteDocument(ctx context.Context, id uint) error {
	return g.db.WithContext(ctx).Delete(&model.Document{}, id).Error
}

func (g *GormStore) DeleteDirectoryDocuments(ctx context.Context, directoryID uint) (int64, error) {
	res := g.db.WithContext(ctx).Where("directory_id = ?", directoryID).Delete(&model.Document{})
	return res.RowsAffected, res.Error
}
