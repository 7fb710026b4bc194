package store

import (
	"context"
	"fmt"

	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/models"
	"gorm.io/gorm"
)

type termStore struct {
	db *gorm.DB
}

func (t *termStore) Exists(ctx context.Context, taxonomy string, id uint) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&models.Term{}).Where("id = ? AND taxonomy = ?", id, taxonomy).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("store: check term %d in %s: %w", id, taxonomy, err)
	}
	return count > 0, nil
}

func (t *termStore) taxonomyTerms(ctx context.Context, taxonomy string) *gorm.DB {
	return t.db.WithContext(ctx).Model(&models.Term{}).Select("id").Where("taxonomy = ?", taxonomy)
}

func (t *termStore) ObjectTerms(ctx context.Context, objectID uint, taxonomy string) ([]uint, error) {
	var ids []uint
	err := t.db.WithContext(ctx).
		Model(&models.TermRelationship{}).
		Where("object_id = ? AND term_id IN (?)", objectID, t.taxonomyTerms(ctx, taxonomy)).
		Order("term_id ASC").
		Pluck("term_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("store: terms of %d in %s: %w", objectID, taxonomy, err)
	}
	return ids, nil
}

// SetObjectTerms replaces the object's terms within taxonomy.
func (t *termStore) SetObjectTerms(ctx context.Context, objectID uint, taxonomy string, ids []uint) error {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&models.Term{}).Select("id").Where("taxonomy = ?", taxonomy)
		if err := tx.Where("object_id = ? AND term_id IN (?)", objectID, sub).Delete(&models.TermRelationship{}).Error; err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.Create(&models.TermRelationship{ObjectID: objectID, TermID: id}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: set terms of %d in %s: %w", objectID, taxonomy, err)
	}
	return nil
}

// CreateTerm adds a term to taxonomy.
func (s *Store) CreateTerm(ctx context.Context, taxonomy, name string) (*models.Term, error) {
	if taxonomy == "" || name == "" {
		return nil, host.Validationf("term taxonomy and name are required")
	}
	term := models.Term{Taxonomy: taxonomy, Name: name}
	if err := s.db.WithContext(ctx).Create(&term).Error; err != nil {
		return nil, fmt.Errorf("store: create term %q in %s: %w", name, taxonomy, err)
	}
	return &term, nil
}
