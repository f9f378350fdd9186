package repository

import (
	"assess_edu_backend/internal/model"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// CreateWithSnapshot 作答记录和题目快照在一个事务里创建。
// (user_id, assessment_id, active_key) 唯一索引保证并发开卷只会成功一次，
// 失败方拿到 gorm.ErrDuplicatedKey，由上层转为续答。
func (r *AttemptRepository) CreateWithSnapshot(attempt *model.Attempt, items []model.SnapshotItem) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].AttemptID = attempt.ID
		}
		return tx.Create(&items).Error
	})
}

func (r *AttemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("snapshot_items.order_index asc")
	}).First(&attempt, id).Error
	return &attempt, err
}

// FindActive 当前进行中的那一次（至多一条）
func (r *AttemptRepository) FindActive(userID, assessmentID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("snapshot_items.order_index asc")
	}).Where("user_id = ? AND assessment_id = ? AND status = ?",
		userID, assessmentID, model.AttemptInProgress).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindLatestTerminal(userID, assessmentID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.Where("user_id = ? AND assessment_id = ? AND status <> ?",
		userID, assessmentID, model.AttemptInProgress).
		Order("attempt_number desc").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) CountByUserAndAssessment(userID, assessmentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).
		Where("user_id = ? AND assessment_id = ?", userID, assessmentID).
		Count(&count).Error
	return count, err
}

// MarkFinalized 条件更新：仅当仍为 in_progress 时转入终态并释放 ActiveKey。
// 返回是否由本次调用完成转移；false 表示已被并发的交卷/超时处理抢先，
// 调用方应重读后按幂等路径返回既有结果。
func (r *AttemptRepository) MarkFinalized(tx *gorm.DB, attemptID uint, status model.AttemptStatus, reason model.FinalizeReason, total decimal.Decimal, completedAt time.Time) (bool, error) {
	if tx == nil {
		tx = r.DB
	}
	res := tx.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":       status,
			"end_reason":   string(reason),
			"total_score":  total,
			"completed_at": &completedAt,
			"active_key":   nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AttemptRepository) ListByAssessment(assessmentID uint, page, limit int) ([]model.Attempt, int64, error) {
	var total int64
	query := r.DB.Model(&model.Attempt{}).Where("assessment_id = ? AND is_preview = ?", assessmentID, false)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.Attempt
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&attempts).Error
	return attempts, total, err
}

// DeletePreview 预览卷连同快照、答题记录一并删除；真实作答从不删除
func (r *AttemptRepository) DeletePreview(attemptID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var attempt model.Attempt
		if err := tx.First(&attempt, attemptID).Error; err != nil {
			return err
		}
		if !attempt.IsPreview {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("attempt_id = ?", attemptID).Delete(&model.AnswerRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("attempt_id = ?", attemptID).Delete(&model.SnapshotItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Attempt{}, attemptID).Error
	})
}
