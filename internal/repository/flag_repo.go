package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/regflow_go_server/internal/model"
)

type FlagRepository struct {
	db *gorm.DB
}

func NewFlagRepository(db *gorm.DB) *FlagRepository {
	return &FlagRepository{db: db}
}

// Get 未记录时返回 false
func (r *FlagRepository) Get(key model.ReportKey) (bool, error) {
	var flag model.AdvancementFlag
	err := r.db.Where("cycle_id = ? AND report_id = ?", key.CycleID, key.ReportID).First(&flag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return flag.Advanced, nil
}

// Set 按 (cycle_id, report_id) upsert
func (r *FlagRepository) Set(key model.ReportKey, advanced bool) error {
	flag := &model.AdvancementFlag{
		CycleID:  key.CycleID,
		ReportID: key.ReportID,
		Advanced: advanced,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cycle_id"}, {Name: "report_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"advanced", "updated_at"}),
	}).Create(flag).Error
}

func (r *FlagRepository) Delete(key model.ReportKey) error {
	return r.db.Where("cycle_id = ? AND report_id = ?", key.CycleID, key.ReportID).
		Delete(&model.AdvancementFlag{}).Error
}

// List 列出所有已记录的 flag
func (r *FlagRepository) List() ([]*model.AdvancementFlag, error) {
	var flags []*model.AdvancementFlag
	err := r.db.Order("cycle_id ASC, report_id ASC").Find(&flags).Error
	return flags, err
}
