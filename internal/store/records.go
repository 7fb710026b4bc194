package store

import (
	"context"
	"fmt"

	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/models"
	"gorm.io/gorm"
)

// trashStatusKey remembers a record's status from before it was trashed.
const trashStatusKey = "_wp_trash_meta_status"

type recordStore struct {
	db    *gorm.DB
	hooks *hookRegistry
}

func toRecord(p *models.Post) *host.Record {
	return &host.Record{
		ID:        p.ID,
		Type:      p.PostType,
		Title:     p.Title,
		Content:   p.Content,
		Status:    p.Status,
		AuthorID:  p.AuthorID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (r *recordStore) Get(ctx context.Context, id uint) (*host.Record, error) {
	var p models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if nf := notFound(err, "record %d", id); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("store: get record %d: %w", id, err)
	}
	return toRecord(&p), nil
}

func (r *recordStore) Insert(ctx context.Context, rec *host.Record, mode host.WriteMode) (uint, error) {
	status := rec.Status
	if status == "" {
		status = host.StatusPublish
	}
	p := models.Post{
		PostType: rec.Type,
		Title:    rec.Title,
		Content:  rec.Content,
		Status:   status,
		AuthorID: rec.AuthorID,
	}
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, fmt.Errorf("store: insert %s record: %w", rec.Type, err)
	}
	*rec = *toRecord(&p)
	if mode == host.WriteNormal {
		if err := r.hooks.fire(ctx, rec); err != nil {
			return p.ID, err
		}
	}
	return p.ID, nil
}

func (r *recordStore) Update(ctx context.Context, id uint, upd host.RecordUpdate, mode host.WriteMode) error {
	var p models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if nf := notFound(err, "record %d", id); nf != nil {
			return nf
		}
		return fmt.Errorf("store: get record %d for update: %w", id, err)
	}

	updates := map[string]interface{}{}
	if upd.Title != nil {
		updates["title"] = *upd.Title
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		updates["content"] = *upd.Content
		p.Content = *upd.Content
	}
	if upd.Status != nil {
		updates["status"] = *upd.Status
		p.Status = *upd.Status
	}
	if len(updates) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: update record %d: %w", id, err)
	}
	if mode == host.WriteNormal {
		return r.hooks.fire(ctx, toRecord(&p))
	}
	return nil
}

func (r *recordStore) Trash(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Post
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			if nf := notFound(err, "record %d", id); nf != nil {
				return nf
			}
			return fmt.Errorf("store: get record %d for trash: %w", id, err)
		}
		meta := &metaStore{db: tx}
		if err := meta.Set(ctx, id, trashStatusKey, p.Status); err != nil {
			return err
		}
		if err := tx.Model(&p).Update("status", host.StatusTrash).Error; err != nil {
			return fmt.Errorf("store: mark record %d trashed: %w", id, err)
		}
		if err := tx.Delete(&p).Error; err != nil {
			return fmt.Errorf("store: trash record %d: %w", id, err)
		}
		return nil
	})
}

func (r *recordStore) Restore(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Post
		err := tx.Unscoped().Where("id = ? AND deleted_at IS NOT NULL", id).First(&p).Error
		if err != nil {
			if nf := notFound(err, "trashed record %d", id); nf != nil {
				return nf
			}
			return fmt.Errorf("store: get trashed record %d: %w", id, err)
		}

		meta := &metaStore{db: tx}
		status, found, err := meta.Get(ctx, id, trashStatusKey)
		if err != nil {
			return err
		}
		if !found || status == "" {
			status = host.StatusDraft
		}
		if err := tx.Unscoped().Model(&p).Updates(map[string]interface{}{
			"status":     status,
			"deleted_at": nil,
		}).Error; err != nil {
			return fmt.Errorf("store: restore record %d: %w", id, err)
		}
		return meta.Delete(ctx, id, trashStatusKey)
	})
}

// metaMatch selects the ids of posts carrying key=value.
func (r *recordStore) metaMatch(ctx context.Context, key, value string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.PostMeta{}).
		Select("post_id").
		Where("meta_key = ? AND meta_value = ?", key, value)
}

func (r *recordStore) FindByMeta(ctx context.Context, recordType, key, value string) (*host.Record, error) {
	var p models.Post
	err := r.db.WithContext(ctx).
		Where("post_type = ? AND id IN (?)", recordType, r.metaMatch(ctx, key, value)).
		Order("id ASC").
		First(&p).Error
	if err != nil {
		if nf := notFound(err, "%s with %s=%q", recordType, key, value); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("store: find %s by %s: %w", recordType, key, err)
	}
	return toRecord(&p), nil
}

func (r *recordStore) ListByMeta(ctx context.Context, recordType, key, value string) ([]host.Record, error) {
	q := r.db.WithContext(ctx).Where("post_type = ?", recordType)
	if key != "" {
		q = q.Where("id IN (?)", r.metaMatch(ctx, key, value))
	}
	var posts []models.Post
	if err := q.Order("id ASC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("store: list %s records: %w", recordType, err)
	}
	out := make([]host.Record, 0, len(posts))
	for i := range posts {
		out = append(out, *toRecord(&posts[i]))
	}
	return out, nil
}
