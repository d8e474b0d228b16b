package repository

import (
	"errors"

	"branch-queue-engine/internal/domain/entity"
	domainRepo "branch-queue-engine/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type servicePointRepository struct{}

func NewServicePointRepository() domainRepo.ServicePointRepository {
	return &servicePointRepository{}
}

func (r *servicePointRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.ServicePoint, error) {
	var point entity.ServicePoint
	err := db.Where("id = ?", id).First(&point).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &point, nil
}

func (r *servicePointRepository) FindActiveByService(db *gorm.DB, serviceID uuid.UUID) ([]entity.ServicePoint, error) {
	var points []entity.ServicePoint
	err := db.Joins("JOIN service_point_services sps ON sps.service_point_id = service_points.id").
		Where("sps.service_id = ? AND service_points.is_active = ?", serviceID, true).
		Order("service_points.name ASC").
		Find(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (r *servicePointRepository) ServesService(db *gorm.DB, servicePointID, serviceID uuid.UUID) (bool, error) {
	var count int64
	err := db.Table("service_point_services").
		Where("service_point_id = ? AND service_id = ?", servicePointID, serviceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
