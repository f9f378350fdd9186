package repository

import (
	"assess_edu_backend/internal/model"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AnswerRepository struct {
	DB *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{DB: db}
}

// Upsert (attempt, question) 维度的 last-write-wins 写入。
// 先尝试插入；撞唯一索引说明已有记录，转为带新旧判据的条件更新：
// 只有 client_seq 更大的提交才会覆盖，乱序到达的旧值直接丢弃。
// 返回本次写入是否生效。两条语句各自原子，无需行锁。
func (r *AnswerRepository) Upsert(rec *model.AnswerRecord) (bool, error) {
	err := r.DB.Create(rec).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, err
	}

	res := r.DB.Model(&model.AnswerRecord{}).
		Where("attempt_id = ? AND question_id = ? AND client_seq < ? AND final = ?",
			rec.AttemptID, rec.QuestionID, rec.ClientSeq, false).
		Updates(map[string]interface{}{
			"value":              rec.Value,
			"client_seq":         rec.ClientSeq,
			"time_spent_seconds": rec.TimeSpentSeconds,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByAttempt 交卷评分前的一次性一致读
func (r *AnswerRepository) ListByAttempt(attemptID uint) ([]model.AnswerRecord, error) {
	var records []model.AnswerRecord
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&records).Error
	return records, err
}

// CountByAttempt 统计已作答题数。空白值是学生清空作答留下的记录，
// 与判分口径保持一致，不计入
func (r *AnswerRepository) CountByAttempt(attemptID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.AnswerRecord{}).
		Where("attempt_id = ? AND TRIM(value) <> ''", attemptID).
		Count(&count).Error
	return count, err
}

// LockScore 交卷时锁定单条判分结果
func (r *AnswerRepository) LockScore(tx *gorm.DB, attemptID, questionID uint, isCorrect bool, score decimal.Decimal) error {
	if tx == nil {
		tx = r.DB
	}
	return tx.Model(&model.AnswerRecord{}).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		Updates(map[string]interface{}{
			"is_correct": isCorrect,
			"score":      score,
			"final":      true,
		}).Error
}
