package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yukikurage/rollout-ready-api/internal/constants"
	"github.com/yukikurage/rollout-ready-api/internal/database"
	"github.com/yukikurage/rollout-ready-api/internal/logging"
	"github.com/yukikurage/rollout-ready-api/internal/metrics"
	"github.com/yukikurage/rollout-ready-api/internal/models"
	"github.com/yukikurage/rollout-ready-api/internal/repository"
	"github.com/yukikurage/rollout-ready-api/internal/storage"
)

// HousekeepingService runs maintenance that is not tied to a request.
type HousekeepingService struct {
	repos  *repository.Repositories
	store  storage.FileStore
	logger *zap.Logger
	now    func() time.Time
}

// NewHousekeepingService creates a new HousekeepingService
func NewHousekeepingService(repos *repository.Repositories, store storage.FileStore, logger *zap.Logger) *HousekeepingService {
	return &HousekeepingService{
		repos:  repos,
		store:  store,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// SweepOrphans deletes stored attachment files older than grace that have no
// metadata row. Younger files may belong to an upload still in flight.
func (s *HousekeepingService) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored files: %w", err)
	}

	cutoff := s.now().Add(-grace)
	candidates := make([]string, 0, len(objects))
	for _, obj := range objects {
		if strings.HasPrefix(obj.Name, constants.AttachmentKeyPrefix) && obj.ModTime.Before(cutoff) {
			candidates = append(candidates, obj.Name)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	existing, err := s.repos.Attachments.ExistingFileNames(candidates)
	if err != nil {
		return 0, fmt.Errorf("failed to check attachment metadata: %w", err)
	}

	removed := 0
	for _, name := range candidates {
		if existing[name] {
			continue
		}
		if err := s.store.Delete(ctx, name); err != nil {
			s.logger.Warn("failed to delete orphaned file", zap.String("file", name), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.HousekeepingRemovedTotal.WithLabelValues("orphan_files").Add(float64(removed))
		s.logger.Info("removed orphaned attachment files", zap.Int("count", removed))
	}
	return removed, nil
}

// HealthReport is the body of the health endpoint.
type HealthReport struct {
	Users           int64
	Roles           int64
	Templates       int64
	Projects        int64
	AdminUserExists bool
}

// Health pings the database and counts the catalog. An error means the
// database is unreachable.
func (s *HousekeepingService) Health() (*HealthReport, error) {
	if err := database.Ping(s.repos.DB()); err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	var (
		report HealthReport
		err    error
	)
	if report.Users, err = s.repos.Users.Count(); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if report.Roles, err = s.repos.Roles.Count(); err != nil {
		return nil, fmt.Errorf("failed to count roles: %w", err)
	}
	if report.Templates, err = s.repos.Templates.Count(); err != nil {
		return nil, fmt.Errorf("failed to count templates: %w", err)
	}
	if report.Projects, err = s.repos.Projects.Count(); err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	admins, err := s.repos.Users.CountBySystemRole(models.SystemRoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to count administrators: %w", err)
	}
	report.AdminUserExists = admins > 0
	return &report, nil
}
