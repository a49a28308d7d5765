package service

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/repository"
	"github.com/tawtheeq/tawtheeq-backend/pkg/logger"
	"github.com/tawtheeq/tawtheeq-backend/pkg/redis"
	"gorm.io/gorm"
)

const (
	staffStatsCacheKey = "verification:stats:staff"
	statsCacheTTL      = 60 * time.Second
)

// Page is one page of submissions plus paging metadata.
type Page struct {
	Items    []model.Submission `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

type QueryService interface {
	// ListForRole returns submissions visible to the actor. Applicants are
	// force-scoped to their own records regardless of what the caller asks
	// for; staff see everything, optionally filtered by status.
	ListForRole(actor *model.User, status *model.SubmissionStatus, page, pageSize int) (*Page, error)
	// StatsForRole returns per-status counts under the same scoping rule.
	StatsForRole(actor *model.User) (*repository.SubmissionStats, error)
	// GetForActor loads one submission if the actor may see it.
	GetForActor(submissionID uint, actor *model.User) (*model.Submission, error)
}

type queryService struct {
	submissionRepo repository.SubmissionRepository
	cache          *goredis.Client // nil disables caching
}

func NewQueryService(submissionRepo repository.SubmissionRepository, cache *goredis.Client) QueryService {
	return &queryService{
		submissionRepo: submissionRepo,
		cache:          cache,
	}
}

func (s *queryService) ListForRole(actor *model.User, status *model.SubmissionStatus, page, pageSize int) (*Page, error) {
	filter := repository.SubmissionFilter{Status: status}

	// Scoping is decided here, never by caller-supplied parameters.
	if !actor.Role.IsStaff() {
		userID := actor.ID
		filter.UserID = &userID
	}

	items, total, err := s.submissionRepo.List(filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return &Page{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (s *queryService) StatsForRole(actor *model.User) (*repository.SubmissionStats, error) {
	if !actor.Role.IsStaff() {
		userID := actor.ID
		return s.submissionRepo.Stats(repository.SubmissionFilter{UserID: &userID})
	}

	// Staff-wide stats are the hot dashboard query; serve from cache when
	// possible.
	ctx := context.Background()
	if s.cache != nil {
		var cached repository.SubmissionStats
		hit, err := redis.GetJSON(ctx, s.cache, staffStatsCacheKey, &cached)
		if err != nil {
			logger.Warn("Stats cache read failed, falling back to database", map[string]interface{}{
				"error": err.Error(),
			})
		} else if hit {
			return &cached, nil
		}
	}

	stats, err := s.submissionRepo.Stats(repository.SubmissionFilter{})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := redis.SetJSON(ctx, s.cache, staffStatsCacheKey, stats, statsCacheTTL); err != nil {
			logger.Warn("Stats cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return stats, nil
}

func (s *queryService) GetForActor(submissionID uint, actor *model.User) (*model.Submission, error) {
	submission, err := s.submissionRepo.FindByIDWithReviewer(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	if actor.Role.IsStaff() {
		return submission, nil
	}

	// Guest submissions (no applicant link) stay reachable by their direct
	// link; everything else is owner-only. A foreign id gets NotFound, not
	// Forbidden, so nothing about other applicants' records leaks.
	if submission.UserID != nil && *submission.UserID != actor.ID {
		return nil, ErrSubmissionNotFound
	}

	return submission, nil
}
