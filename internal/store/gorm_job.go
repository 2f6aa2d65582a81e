package store

import (
	"context"
	"time"

	"github.com/evolearn/studyhub/internal/model"
)

func (g *GormStore) CreateJob(ctx context.Context, job *model.SummaryJob) error {
	return g.db.WithContext(ctx).Create(job).Error
}

func (g *GormStore) GetJob(ctx context.Context, id uint) (*model.SummaryJob, error) {
	var job model.SummaryJob
	err := g.db.WithContext(ctx).First(&job, id).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (g *GormStore) FindActiveJob(ctx context.Context, userID uint, fileRelPath string, analysis model.AnalysisType) (*model.SummaryJob, error) {
	var job model.SummaryJob
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND file_rel_path = ? AND analysis_type = ? AND status IN ?",
			userID, fileRelPath, analysis, model.ActiveJobStatuses).
		Order("created_at DESC, id DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (g *GormStore) FindRecentActiveJob(ctx context.Context, userID uint, since time.Time) (*model.SummaryJob, error) {
	var job model.SummaryJob
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND status IN ? AND created_at >= ?", userID, model.ActiveJobStatuses, since).
		Order("created_at DESC, id DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (g *GormStore) NextPendingJob(ctx context.Context) (*model.SummaryJob, error) {
	var job model.SummaryJob
	err := g.db.WithContext(ctx).
		Where("status = ?", model.JobPending).
		Order("created_at ASC, id ASC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// TransitionJob is the only way job rows change status. The status guard in
// the WHERE clause makes every transition a compare-and-set, so a job that
// reached a terminal status is never written again.
func (g *GormStore) TransitionJob(ctx context.Context, id uint, from []model.JobStatus, updates map[string]any) (bool, error) {
	res := g.db.WithContext(ctx).
		Model(&model.SummaryJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (g *GormStore) ListStaleJobs(ctx context.Context, status model.JobStatus, before time.Time) ([]*model.SummaryJob, error) {
	var jobs []*model.SummaryJob
	err := g.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before).
		Order("id").
		Find(&jobs).Error
	return jobs, err
}

func (g *GormStore) ListActiveJobFiles(ctx context.Context) ([]string, error) {
	var paths []string
	err := g.db.WithContext(ctx).
		Model(&model.SummaryJob{}).
		Where("status IN ? AND file_path <> ''", model.ActiveJobStatuses).
		Pluck("file_path", &paths).Error
	return paths, err
}
