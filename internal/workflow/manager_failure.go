package workflow

import (
	"context"
	"errors"
	"fmt"

	"mailroom/internal/logging"
	"mailroom/internal/queue"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	failureStatus := queue.FailureStatus(stageErr)
	if failureStatus == queue.StatusReview {
		item.SetReview(stageErr.Error())
	} else {
		item.SetFailed(stageErr.Error())
	}

	if err := m.store.Update(ctx, item); err != nil {
		m.logger.Error("failed to persist stage failure",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(err),
		)
	}
	m.logger.Error("stage failed",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldStage, stageName),
		logging.String("failure_status", string(failureStatus)),
		logging.Error(stageErr),
	)
	m.setLastItem(item)
	m.notifyStageError(ctx, stageName, item, stageErr)
	m.checkQueueCompletion(ctx)
}

func (m *Manager) notifyStageError(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	if item.Status == queue.StatusReview {
		if err := m.notifier.NotifyDocumentReview(ctx, item.Title, item.ReviewReason); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Debug("review notification failed", logging.Error(err))
		}
		return
	}
	contextLabel := fmt.Sprintf("%s (item #%d)", stageName, item.ID)
	if err := m.notifier.NotifyError(ctx, stageErr, contextLabel); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("stage error notification failed", logging.Error(err))
	}
}

func (m *Manager) notifyStageOutcome(ctx context.Context, item *queue.Item) {
	if m.notifier == nil || item == nil {
		return
	}
	if item.Status != queue.StatusCompleted {
		return
	}
	if err := m.notifier.NotifyDocumentFiled(ctx, item.Title, item.FinalPath); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("filed notification failed", logging.Error(err))
	}
}
