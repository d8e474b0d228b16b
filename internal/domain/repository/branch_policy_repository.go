package repository

import (
	"branch-queue-engine/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BranchPolicyRepository interface {
	FindByBranchID(db *gorm.DB, branchID uuid.UUID) (*entity.BranchPolicy, error)
}
