package repository

import (
	"errors"

	"branch-queue-engine/internal/domain/entity"
	domainRepo "branch-queue-engine/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type branchPolicyRepository struct{}

func NewBranchPolicyRepository() domainRepo.BranchPolicyRepository {
	return &branchPolicyRepository{}
}

func (r *branchPolicyRepository) FindByBranchID(db *gorm.DB, branchID uuid.UUID) (*entity.BranchPolicy, error) {
	var policy entity.BranchPolicy
	err := db.Where("branch_id = ?", branchID).First(&policy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &policy, nil
}
