package models

import (
	"time"

	"gorm.io/datatypes"
)

// Candidate 候选人主数据，简历文本已由离线索引流程解析入库
type Candidate struct {
	CandidateID string    `gorm:"column:candidate_id;primaryKey;type:varchar(64)" json:"candidate_id"`
	Name        string    `gorm:"column:name;type:varchar(255)" json:"name"`
	Email       string    `gorm:"column:email;type:varchar(255)" json:"email"`
	ResumeText  string    `gorm:"column:resume_text;type:longtext" json:"resume_text"`
	Skills      string    `gorm:"column:skills;type:text" json:"skills"` // 逗号分隔的技能标签
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Candidate) TableName() string {
	return "candidates"
}

// ScreeningResult 一次筛选任务的落库记录，响应与安全报告以JSON列存储
type ScreeningResult struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID       string         `gorm:"column:task_id;type:varchar(64);uniqueIndex" json:"task_id"`
	JobID        string         `gorm:"column:job_id;type:varchar(64);index" json:"job_id"`
	CandidateID  string         `gorm:"column:candidate_id;type:varchar(64);index" json:"candidate_id"`
	Status       string         `gorm:"column:status;type:varchar(32)" json:"status"`
	Response     datatypes.JSON `gorm:"column:response" json:"response"`
	SafetyReport datatypes.JSON `gorm:"column:safety_report" json:"safety_report"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (ScreeningResult) TableName() string {
	return "screening_results"
}
