package api_test

import (
	"context"
	"testing"

	"mailroom/internal/api"
	"mailroom/internal/queue"
)

type fakeActionService struct {
	items   map[int64]*api.QueueItem
	retried []int64
}

func (f *fakeActionService) Describe(_ context.Context, id int64) (*api.QueueItem, error) {
	return f.items[id], nil
}

func (f *fakeActionService) Retry(_ context.Context, ids []int64) (int64, error) {
	f.retried = append(f.retried, ids...)
	return int64(len(ids)), nil
}

func TestRetryFailedItemsByID(t *testing.T) {
	service := &fakeActionService{
		items: map[int64]*api.QueueItem{
			1: {ID: 1, Status: string(queue.StatusFailed)},
			2: {ID: 2, Status: string(queue.StatusCompleted)},
		},
	}

	result, err := api.RetryFailedItemsByID(context.Background(), service, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("RetryFailedItemsByID: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("updated count = %d, want 1", result.UpdatedCount)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 item results, got %d", len(result.Items))
	}
	outcomes := map[int64]api.RetryItemOutcome{}
	for _, item := range result.Items {
		outcomes[item.ID] = item.Outcome
	}
	if outcomes[1] != api.RetryItemUpdated {
		t.Fatalf("item 1 outcome = %s", outcomes[1])
	}
	if outcomes[2] != api.RetryItemNotFailed {
		t.Fatalf("item 2 outcome = %s", outcomes[2])
	}
	if outcomes[3] != api.RetryItemNotFound {
		t.Fatalf("item 3 outcome = %s", outcomes[3])
	}
	if len(service.retried) != 1 || service.retried[0] != 1 {
		t.Fatalf("unexpected retry calls: %v", service.retried)
	}
}
