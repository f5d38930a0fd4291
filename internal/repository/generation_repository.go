package repository

import (
	"cogvideo-bot-go/internal/model"

	"gorm.io/gorm"
)

// GenerationRepository 定义了生成记录的持久化操作。
type GenerationRepository interface {
	Create(record *model.GenerationRecord) error
	// UpdateOutcome 按任务 ID 写入终态与结果地址。
	UpdateOutcome(taskID, status, videoURL, coverURL string) error
	FindRecent(limit int) ([]model.GenerationRecord, error)
}

type generationRepository struct {
	db *gorm.DB
}

// NewGenerationRepository 创建一个新的 GenerationRepository 实例。
func NewGenerationRepository(db *gorm.DB) GenerationRepository {
	return &generationRepository{db: db}
}

// Create 在数据库中创建一条生成记录。
func (r *generationRepository) Create(record *model.GenerationRecord) error {
	return r.db.Create(record).Error
}

// UpdateOutcome 更新指定任务的终态。
func (r *generationRepository) UpdateOutcome(taskID, status, videoURL, coverURL string) error {
	return r.db.Model(&model.GenerationRecord{}).
		Where("task_id = ?", taskID).
		Updates(map[string]interface{}{
			"status":    status,
			"video_url": videoURL,
			"cover_url": coverURL,
		}).Error
}

// FindRecent 按创建时间倒序返回最近的生成记录。
func (r *generationRepository) FindRecent(limit int) ([]model.GenerationRecord, error) {
	var records []model.GenerationRecord
	err := r.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
