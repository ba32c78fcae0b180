package postgres

import (
	"context"
	"errors"
	"fmt"

	"cra-notify/internal/models"

	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// ProjectIDsForUser lists projects the user created or actively participates in.
func (r *ProjectRepository) ProjectIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("creator_id = ?", userID).
		Or("id IN (?)", r.db.Model(&models.ProjectParticipant{}).
			Select("project_id").
			Where("user_id = ? AND is_active = ?", userID, true)).
		Distinct().
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for user %s: %w", userID, err)
	}
	return ids, nil
}

// MemberIDs returns the creator plus every active participant of a project.
func (r *ProjectRepository) MemberIDs(ctx context.Context, projectID string) ([]string, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Select("id", "creator_id").First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrProjectNotFound
		}
		return nil, err
	}

	var participantIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.ProjectParticipant{}).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Pluck("user_id", &participantIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants of %s: %w", projectID, err)
	}

	ids := []string{project.CreatorID}
	for _, id := range participantIDs {
		if id != project.CreatorID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *ProjectRepository) AddParticipant(ctx context.Context, participant *models.ProjectParticipant) error {
	if err := r.db.WithContext(ctx).Create(participant).Error; err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}
