package repository

import (
	"github.com/AiMarketingPartners/Aiq-Learning-Backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

// Create 依赖 (user_id, course_id) 唯一索引在存储层兜底并发重复颁发，
// 冲突时返回 gorm.ErrDuplicatedKey，由服务层取回已存在的证书。
func (r *CertificateRepository) Create(certificate *model.Certificate) error {
	return r.DB.Create(certificate).Error
}

func (r *CertificateRepository) FindByUserAndCourse(userID, courseID uint) (*model.Certificate, error) {
	var certificate model.Certificate
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&certificate).Error
	if err != nil {
		return nil, err
	}
	return &certificate, nil
}

func (r *CertificateRepository) FindByCertificateID(certificateID string) (*model.Certificate, error) {
	var certificate model.Certificate
	err := r.DB.Where("certificate_id = ?", certificateID).First(&certificate).Error
	if err != nil {
		return nil, err
	}
	return &certificate, nil
}

func (r *CertificateRepository) ListByUser(userID uint) ([]model.Certificate, error) {
	var certificates []model.Certificate
	err := r.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&certificates).Error
	return certificates, err
}
