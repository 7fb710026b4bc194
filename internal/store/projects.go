package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/upstream-pm/upstream/internal/host"
	"github.com/upstream-pm/upstream/internal/models"
	"gorm.io/gorm"
)

// TasksMetaKey holds a project's task list as a JSON array.
const TasksMetaKey = "_upstream_project_tasks"

type projectLookup struct {
	db *gorm.DB
}

func (p *projectLookup) Project(ctx context.Context, id uint) (*host.Record, error) {
	var post models.Post
	err := p.db.WithContext(ctx).Where("id = ? AND post_type = ?", id, host.TypeProject).First(&post).Error
	if err != nil {
		if nf := notFound(err, "project %d", id); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("store: get project %d: %w", id, err)
	}
	return toRecord(&post), nil
}

// CreateProject inserts a published project record authored by authorID.
func (s *Store) CreateProject(ctx context.Context, title string, authorID uint) (*host.Record, error) {
	if title == "" {
		return nil, host.Validationf("project title is required")
	}
	rec := &host.Record{Type: host.TypeProject, Title: title, AuthorID: authorID, Status: host.StatusPublish}
	if _, err := s.Records().Insert(ctx, rec, host.WriteNormal); err != nil {
		return nil, err
	}
	return rec, nil
}

type taskCollection struct {
	meta *metaStore
}

// Tasks decodes numbers as json.Number so ids compare the way they were
// written.
func (t *taskCollection) Tasks(ctx context.Context, projectID uint) ([]host.Task, error) {
	raw, found, err := t.meta.Get(ctx, projectID, TasksMetaKey)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var tasks []host.Task
	if err := dec.Decode(&tasks); err != nil {
		return nil, fmt.Errorf("store: decode tasks of project %d: %w", projectID, err)
	}
	return tasks, nil
}

func (t *taskCollection) SaveTasks(ctx context.Context, projectID uint, tasks []host.Task) error {
	if tasks == nil {
		tasks = []host.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("store: encode tasks of project %d: %w", projectID, err)
	}
	return t.meta.Set(ctx, projectID, TasksMetaKey, string(data))
}
