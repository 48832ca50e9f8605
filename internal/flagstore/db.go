package flagstore

import (
	"context"

	"github.com/qs3c/regflow_go_server/internal/model"
	"github.com/qs3c/regflow_go_server/internal/repository"
)

// DBStore persists flags in workflow_advancement_flags through gorm.
type DBStore struct {
	repo *repository.FlagRepository
}

func NewDBStore(repo *repository.FlagRepository) *DBStore {
	return &DBStore{repo: repo}
}

func (s *DBStore) Get(_ context.Context, key model.ReportKey) (bool, error) {
	return s.repo.Get(key)
}

func (s *DBStore) Set(_ context.Context, key model.ReportKey, advanced bool) error {
	return s.repo.Set(key, advanced)
}

func (s *DBStore) Delete(_ context.Context, key model.ReportKey) error {
	return s.repo.Delete(key)
}

func (s *DBStore) List(_ context.Context) ([]Entry, error) {
	flags, err := s.repo.List()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(flags))
	for i, f := range flags {
		entries[i] = Entry{Key: f.Key(), Advanced: f.Advanced}
	}
	return entries, nil
}
