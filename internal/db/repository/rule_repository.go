package repository

import (
	"github.com/farmpulse/backend/internal/db/models"
	"gorm.io/gorm"
)

// RuleRepository defines operations for rule configuration
type RuleRepository interface {
	Repository
	List() ([]models.Rule, error)
	GetByID(id uint) (*models.Rule, error)
	Create(rule *models.Rule) error
	Update(rule *models.Rule) error
	Delete(id uint) error
}

// ruleRepository implements RuleRepository
type ruleRepository struct {
	BaseRepository
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// List returns all rules in stable evaluation order
func (r *ruleRepository) List() ([]models.Rule, error) {
	var rules []models.Rule
	err := r.GetDB().Order("position asc, id asc").Find(&rules).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return rules, nil
}

// GetByID returns a single rule by its identifier
func (r *ruleRepository) GetByID(id uint) (*models.Rule, error) {
	var rule models.Rule
	err := r.GetDB().First(&rule, id).Error
	if err != nil {
		return nil, r.handleError(err)
	}
	return &rule, nil
}

// Create persists a new rule
func (r *ruleRepository) Create(rule *models.Rule) error {
	err := r.GetDB().Create(rule).Error
	return r.handleError(err)
}

// Update persists changes to an existing rule
func (r *ruleRepository) Update(rule *models.Rule) error {
	result := r.GetDB().Model(&models.Rule{}).Where("id = ?", rule.ID).Updates(rule)
	if result.Error != nil {
		return r.handleError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a rule by its identifier
func (r *ruleRepository) Delete(id uint) error {
	result := r.GetDB().Delete(&models.Rule{}, id)
	if result.Error != nil {
		return r.handleError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
