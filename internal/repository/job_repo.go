package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/regflow_go_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.TrackedJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByJobID(jobID string) (*model.TrackedJob, error) {
	var job model.TrackedJob
	err := r.db.Where("job_id = ?", jobID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetLatestByReport 获取某个 (cycle, report) 最近一次启动的任务
func (r *JobRepository) GetLatestByReport(key model.ReportKey) (*model.TrackedJob, error) {
	var job model.TrackedJob
	err := r.db.Where("cycle_id = ? AND report_id = ?", key.CycleID, key.ReportID).
		Order("created_at DESC, id DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateProgress 记录轮询结果，终态时写入完成时间
func (r *JobRepository) UpdateProgress(update model.JobUpdate) error {
	fields := map[string]interface{}{
		"status":   string(update.Status),
		"progress": update.Progress,
		"message":  update.Message,
	}
	if update.Terminal {
		fields["completed_at"] = time.Now()
	}
	return r.db.Model(&model.TrackedJob{}).Where("job_id = ?", update.JobID).Updates(fields).Error
}

// SupersedeRunning 将某个 report 上仍在运行的任务标记为 cancelled（被新任务替换）
func (r *JobRepository) SupersedeRunning(key model.ReportKey, exceptJobID string) error {
	return r.db.Model(&model.TrackedJob{}).
		Where("cycle_id = ? AND report_id = ? AND status = ? AND job_id <> ?",
			key.CycleID, key.ReportID, string(model.JobRunning), exceptJobID).
		Updates(map[string]interface{}{
			"status":  string(model.JobCancelled),
			"message": "superseded by a newer job",
		}).Error
}

// ListRunning 获取所有仍在运行的任务（用于重启后恢复轮询）
func (r *JobRepository) ListRunning(limit int) ([]*model.TrackedJob, error) {
	var jobs []*model.TrackedJob
	err := r.db.Where("status = ?", string(model.JobRunning)).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
