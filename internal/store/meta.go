package store

import (
	"context"
	"fmt"

	"github.com/upstream-pm/upstream/internal/models"
	"gorm.io/gorm"
)

type metaStore struct {
	db *gorm.DB
}

func (m *metaStore) Get(ctx context.Context, id uint, key string) (string, bool, error) {
	var rows []models.PostMeta
	err := m.db.WithContext(ctx).
		Where("post_id = ? AND meta_key = ?", id, key).
		Order("id ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", false, fmt.Errorf("store: get meta %d/%s: %w", id, key, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].MetaValue, true, nil
}

func (m *metaStore) GetAll(ctx context.Context, id uint, key string) ([]string, error) {
	var values []string
	err := m.db.WithContext(ctx).
		Model(&models.PostMeta{}).
		Where("post_id = ? AND meta_key = ?", id, key).
		Order("id ASC").
		Pluck("meta_value", &values).Error
	if err != nil {
		return nil, fmt.Errorf("store: get all meta %d/%s: %w", id, key, err)
	}
	return values, nil
}

func (m *metaStore) Set(ctx context.Context, id uint, key, value string) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ? AND meta_key = ?", id, key).Delete(&models.PostMeta{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.PostMeta{PostID: id, MetaKey: key, MetaValue: value}).Error
	})
	if err != nil {
		return fmt.Errorf("store: set meta %d/%s: %w", id, key, err)
	}
	return nil
}

func (m *metaStore) Add(ctx context.Context, id uint, key, value string) error {
	if err := m.db.WithContext(ctx).Create(&models.PostMeta{PostID: id, MetaKey: key, MetaValue: value}).Error; err != nil {
		return fmt.Errorf("store: add meta %d/%s: %w", id, key, err)
	}
	return nil
}

func (m *metaStore) Delete(ctx context.Context, id uint, key string) error {
	if err := m.db.WithContext(ctx).Where("post_id = ? AND meta_key = ?", id, key).Delete(&models.PostMeta{}).Error; err != nil {
		return fmt.Errorf("store: delete meta %d/%s: %w", id, key, err)
	}
	return nil
}
