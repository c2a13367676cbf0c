package template

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/dayflow/domain"
	"github.com/fastygo/dayflow/repository"
	taskUC "github.com/fastygo/dayflow/usecase/task"
)

// UseCase saves a day's task shapes and replays them through the task engine.
type UseCase struct {
	templates repository.TemplateStore
	tasks     *taskUC.UseCase
	logger    *zap.Logger
}

func New(templates repository.TemplateStore, tasks *taskUC.UseCase, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		templates: templates,
		tasks:     tasks,
		logger:    logger,
	}
}

// Save replaces the owner's template with the current projection, in order.
func (uc *UseCase) Save(ctx context.Context, ownerID string) ([]domain.TemplateEntry, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	view := uc.tasks.List(ctx, ownerID)
	if view.Err != nil {
		return nil, view.Err
	}

	entries := make([]domain.TemplateEntry, 0, len(view.Tasks))
	for _, t := range view.Tasks {
		entries = append(entries, domain.TemplateEntry{
			StartTime:   t.StartTime,
			EndTime:     t.EndTime,
			Description: t.Description,
			Category:    t.Category.OrDefault(),
		})
	}
	if err := uc.templates.SaveTemplate(ctx, ownerID, entries); err != nil {
		return nil, err
	}
	uc.logger.Info("template saved", zap.String("owner_id", ownerID), zap.Int("entries", len(entries)))
	return entries, nil
}

// Get returns the owner's saved template, possibly empty.
func (uc *UseCase) Get(ctx context.Context, ownerID string) ([]domain.TemplateEntry, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	entries, err := uc.templates.GetTemplate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.TemplateEntry{}
	}
	return entries, nil
}

// Apply adds one task per template entry and returns the resulting view. It
// stops at the first failing add; tasks added before it remain.
func (uc *UseCase) Apply(ctx context.Context, ownerID string) (taskUC.View, error) {
	entries, err := uc.Get(ctx, ownerID)
	if err != nil {
		return taskUC.View{}, err
	}
	if len(entries) == 0 {
		return taskUC.View{}, domain.ErrTemplateEmpty
	}

	for i, entry := range entries {
		if _, err := uc.tasks.Add(ctx, ownerID, entry.Draft()); err != nil {
			uc.logger.Error("template apply interrupted",
				zap.String("owner_id", ownerID),
				zap.Int("applied", i),
				zap.Int("entries", len(entries)),
				zap.Error(err))
			return taskUC.View{}, err
		}
	}
	return uc.tasks.List(ctx, ownerID), nil
}
