package model

import "time"

// AdvancementFlag 记录某个 (cycle, report) 的规则审批是否已推进
type AdvancementFlag struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CycleID   int64     `gorm:"not null;uniqueIndex:idx_flag_report" json:"cycle_id"`
	ReportID  int64     `gorm:"not null;uniqueIndex:idx_flag_report" json:"report_id"`
	Advanced  bool      `gorm:"not null;default:false" json:"advanced"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AdvancementFlag) TableName() string {
	return "workflow_advancement_flags"
}

func (f *AdvancementFlag) Key() ReportKey {
	return ReportKey{CycleID: f.CycleID, ReportID: f.ReportID}
}
