package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type auditLog struct {
	db *gorm.DB
}

func (a *auditLog) Record(ctx context.Context, projectID uint, subject, action string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("store: encode %s %s activity: %w", subject, action, err)
	}
	entry := models.Activity{
		ProjectID: projectID,
		Subject:   subject,
		Action:    action,
		Payload:   datatypes.JSON(data),
	}
	if err := a.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("store: record %s %s activity for project %d: %w", subject, action, projectID, err)
	}
	return nil
}

func (a *auditLog) List(ctx context.Context, projectID uint) ([]host.ActivityEntry, error) {
	var rows []models.Activity
	if err := a.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list activity for project %d: %w", projectID, err)
	}
	out := make([]host.ActivityEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, host.ActivityEntry{
			ID:        r.ID,
			ProjectID: r.ProjectID,
			Subject:   r.Subject,
			Action:    r.Action,
			Payload:   []byte(r.Payload),
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}
