package services

import (
	"errors"
	"fmt"

	"github.com/farmpulse/backend/internal/db"
	"github.com/farmpulse/backend/internal/db/models"
	"github.com/farmpulse/backend/internal/db/repository"
	"github.com/farmpulse/backend/internal/rules"
	"github.com/farmpulse/backend/internal/utils"
	"go.uber.org/zap"
)

// RuleService manages rule configuration. Every successful write reloads
// the engine's rule set, so a change takes effect no later than the next
// reading per sensor.
type RuleService struct {
	logger *utils.Logger
	repo   repository.RuleRepository
	engine *rules.Engine
}

// NewRuleService creates a new rule service
func NewRuleService(database *db.Database, engine *rules.Engine, logger *utils.Logger) *RuleService {
	return &RuleService{
		logger: logger.Named("rule_service"),
		repo:   repository.NewRuleRepository(database.DB),
		engine: engine,
	}
}

// List returns all configured rules in evaluation order
func (s *RuleService) List() ([]models.Rule, error) {
	ruleList, err := s.repo.List()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list rules", utils.ErrStore)
	}
	return ruleList, nil
}

// Get returns one rule by id
func (s *RuleService) Get(id uint) (*models.Rule, error) {
	rule, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: rule %d", utils.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: failed to load rule", utils.ErrStore)
	}
	return rule, nil
}

// Create validates and persists a new rule. A failing definition is
// rejected before any persistence or engine state change.
func (s *RuleService) Create(rule *models.Rule) (*models.Rule, error) {
	if err := rules.ValidateRule(rule); err != nil {
		return nil, err
	}

	if err := s.repo.Create(rule); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: rule named %q", utils.ErrAlreadyExists, rule.Name)
		}
		return nil, fmt.Errorf("%w: failed to create rule", utils.ErrStore)
	}

	s.reloadEngine()
	s.logger.Info("Rule created",
		zap.Uint("rule_id", rule.ID),
		zap.String("name", rule.Name))
	return rule, nil
}

// Update validates and persists changes to an existing rule
func (s *RuleService) Update(rule *models.Rule) (*models.Rule, error) {
	if err := rules.ValidateRule(rule); err != nil {
		return nil, err
	}

	if err := s.repo.Update(rule); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: rule %d", utils.ErrNotFound, rule.ID)
		}
		return nil, fmt.Errorf("%w: failed to update rule", utils.ErrStore)
	}

	s.reloadEngine()
	s.logger.Info("Rule updated", zap.Uint("rule_id", rule.ID))
	return rule, nil
}

// Delete removes a rule; its derived state is pruned on the next reload
func (s *RuleService) Delete(id uint) error {
	if err := s.repo.Delete(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: rule %d", utils.ErrNotFound, id)
		}
		return fmt.Errorf("%w: failed to delete rule", utils.ErrStore)
	}

	s.reloadEngine()
	s.logger.Info("Rule deleted", zap.Uint("rule_id", id))
	return nil
}

// ReloadEngine pushes the persisted rule set into the engine
func (s *RuleService) ReloadEngine() error {
	ruleList, err := s.repo.List()
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	s.engine.Reload(ruleList)
	return nil
}

// reloadEngine is the best-effort variant used after successful writes
func (s *RuleService) reloadEngine() {
	if err := s.ReloadEngine(); err != nil {
		s.logger.Error("Failed to reload rule engine", zap.Error(err))
	}
}
