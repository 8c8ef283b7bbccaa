package model

// 导入批次的状态。
const (
	RunRunning = "running"
	RunOK      = "ok"
	RunFailed  = "failed"
)

// IngestRun 对应数据库中的 ingest_runs 表，记录每次导入命令的来源与结果。
type IngestRun struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Command    string    `gorm:"type:varchar(32);not null" json:"command"`
	IndexName  string    `gorm:"type:varchar(128);not null;index" json:"index"`
	Source     string    `gorm:"type:varchar(512)" json:"source"`
	Status     string    `gorm:"type:varchar(16);not null" json:"status"`
	Produced   int       `json:"produced"`
	Empty      int       `json:"empty"`
	Failed     int       `json:"failed"`
	Indexed    int       `json:"indexed"`
	Rejected   int       `json:"rejected"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	StartedAt  LocalTime `json:"startedAt"`
	FinishedAt LocalTime `json:"finishedAt"`
}

func (IngestRun) TableName() string {
	return "ingest_runs"
}
