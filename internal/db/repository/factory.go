package repository

import "gorm.io/gorm"

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db          *gorm.DB
	readingRepo ReadingRepository
	ruleRepo    RuleRepository
	alertRepo   AlertRepository
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(db *gorm.DB) *RepositoryFactory {
	return &RepositoryFactory{
		db: db,
	}
}

// Readings returns the reading repository
func (f *RepositoryFactory) Readings() ReadingRepository {
	if f.readingRepo == nil {
		f.readingRepo = NewReadingRepository(f.db)
	}
	return f.readingRepo
}

// Rules returns the rule repository
func (f *RepositoryFactory) Rules() RuleRepository {
	if f.ruleRepo == nil {
		f.ruleRepo = NewRuleRepository(f.db)
	}
	return f.ruleRepo
}

// Alerts returns the alert repository
func (f *RepositoryFactory) Alerts() AlertRepository {
	if f.alertRepo == nil {
		f.alertRepo = NewAlertRepository(f.db)
	}
	return f.alertRepo
}
