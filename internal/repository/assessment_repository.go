package repository

import (
	"assess_edu_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

// CreateWithBlocks 定义和题块一并落库
func (r *AssessmentRepository) CreateWithBlocks(a *model.Assessment) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(a).Error
	})
}

func (r *AssessmentRepository) FindByID(id uint) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.Preload("Blocks", func(db *gorm.DB) *gorm.DB {
		return db.Order("question_blocks.block_order asc")
	}).First(&a, id).Error
	return &a, err
}

// Update 只更新定义本身，题块走 ReplaceBlocks
func (r *AssessmentRepository) Update(a *model.Assessment) error {
	return r.DB.Omit("Blocks").Save(a).Error
}

// ReplaceBlocks 未发布前可整体替换题块配置
func (r *AssessmentRepository) ReplaceBlocks(assessmentID uint, blocks []model.QuestionBlock) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assessment_id = ?", assessmentID).Delete(&model.QuestionBlock{}).Error; err != nil {
			return err
		}
		if len(blocks) == 0 {
			return nil
		}
		for i := range blocks {
			blocks[i].AssessmentID = assessmentID
			blocks[i].Order = i
		}
		return tx.Create(&blocks).Error
	})
}

func (r *AssessmentRepository) SetPublished(id uint, publish bool) error {
	updates := map[string]interface{}{"is_published": publish}
	if publish {
		now := time.Now()
		updates["published_at"] = &now
	} else {
		updates["published_at"] = nil
	}
	return r.DB.Model(&model.Assessment{}).Where("id = ?", id).Updates(updates).Error
}

func (r *AssessmentRepository) List(page, limit int) ([]model.Assessment, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Assessment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []model.Assessment
	offset := (page - 1) * limit
	err := r.DB.Preload("Blocks").Order("created_at desc").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
