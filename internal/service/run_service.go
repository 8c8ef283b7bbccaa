package service

import (
	"time"

	"note-search-go/internal/model"
	"note-search-go/internal/pipeline"
	"note-search-go/internal/repository"
	"note-search-go/pkg/es"
	"note-search-go/pkg/log"
)

// RunService 把每次导入记入台账。台账只是旁路记录，写入失败不影响导入本身。
type RunService interface {
	Start(command, index, source string) *model.IngestRun
	Finish(run *model.IngestRun, ps pipeline.Stats, us es.UploadStats, runErr error)
	Recent(index string, limit int) ([]model.IngestRun, error)
}

type runService struct {
	repo repository.RunRepository
	now  func() time.Time
}

// NewRunService 创建一个新的 RunService 实例，repo 为 nil 时只写日志。
func NewRunService(repo repository.RunRepository) RunService {
	return &runService{repo: repo, now: time.Now}
}

// Start 创建一条 running 状态的批次记录。
func (s *runService) Start(command, index, source string) *model.IngestRun {
	run := &model.IngestRun{
		Command:   command,
		IndexName: index,
		Source:    source,
		Status:    model.RunRunning,
		StartedAt: model.LocalTime(s.now()),
	}
	if s.repo != nil {
		if err := s.repo.Create(run); err != nil {
			log.Warnf("[RunService] 写入导入台账失败: %v", err)
		}
	}
	return run
}

// Finish 填入统计与最终状态。
func (s *runService) Finish(run *model.IngestRun, ps pipeline.Stats, us es.UploadStats, runErr error) {
	run.Produced, run.Empty, run.Failed = ps.Produced, ps.Empty, ps.Failed
	run.Indexed, run.Rejected = us.Indexed, us.Rejected
	run.FinishedAt = model.LocalTime(s.now())
	run.Status = model.RunOK
	if runErr != nil {
		run.Status = model.RunFailed
		run.Error = runErr.Error()
	}

	log.Infow("[RunService] 导入结束",
		"command", run.Command, "index", run.IndexName, "status", run.Status,
		"produced", run.Produced, "empty", run.Empty, "failed", run.Failed,
		"indexed", run.Indexed, "rejected", run.Rejected)
	if s.repo != nil && run.ID != 0 {
		if err := s.repo.Update(run); err != nil {
			log.Warnf("[RunService] 更新导入台账失败, id: %d, error: %v", run.ID, err)
		}
	}
}

// Recent 返回最近的批次，index 为空时不按索引过滤。
func (s *runService) Recent(index string, limit int) ([]model.IngestRun, error) {
	if s.repo == nil {
		return []model.IngestRun{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if index != "" {
		return s.repo.FindByIndex(index, limit)
	}
	return s.repo.ListRecent(limit)
}
