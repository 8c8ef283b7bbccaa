// Package repository 封装了导入批次台账的数据库访问。
package repository

import (
	"gorm.io/gorm"

	"note-search-go/internal/model"
)

// RunRepository 定义了对 ingest_runs 表的数据操作接口。
type RunRepository interface {
	Migrate() error
	Create(run *model.IngestRun) error
	Update(run *model.IngestRun) error
	ListRecent(limit int) ([]model.IngestRun, error)
	FindByIndex(index string, limit int) ([]model.IngestRun, error)
}

type runRepository struct {
	db *gorm.DB
}

// NewRunRepository 创建一个新的 RunRepository 实例。
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// Migrate 自动创建或更新 ingest_runs 表。
func (r *runRepository) Migrate() error {
	return r.db.AutoMigrate(&model.IngestRun{})
}

// Create 新建一条批次记录。
func (r *runRepository) Create(run *model.IngestRun) error {
	return r.db.Create(run).Error
}

// Update 保存批次的最终结果。
func (r *runRepository) Update(run *model.IngestRun) error {
	return r.db.Save(run).Error
}

// ListRecent 按开始时间倒序返回最近的批次。
func (r *runRepository) ListRecent(limit int) ([]model.IngestRun, error) {
	var runs []model.IngestRun
	err := r.db.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// FindByIndex 返回某个索引最近的批次。
func (r *runRepository) FindByIndex(index string, limit int) ([]model.IngestRun, error) {
	var runs []model.IngestRun
	err := r.db.Where("index_name = ?", index).Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
