package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository/memory"
	"github.com/maheshrc27/postdispatch/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPublisher struct {
	triggered []string
}

func (s *stubPublisher) ProcessDuePosts(ctx context.Context) (*service.TickSummary, error) {
	return &service.TickSummary{}, nil
}

func (s *stubPublisher) ProcessPost(ctx context.Context, post *models.ScheduledPost) (string, error) {
	return service.OutcomePosted, nil
}

func (s *stubPublisher) TriggerPost(ctx context.Context, postID string) (string, error) {
	if postID == "missing" {
		return "", fmt.Errorf("post %s: %w", postID, service.ErrPostNotFound)
	}
	s.triggered = append(s.triggered, postID)
	return service.OutcomePosted, nil
}

func (s *stubPublisher) UpcomingPosts(ctx context.Context, limit int) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func newTestQueue(store *memory.Store, pub service.PublishService) *Queue {
	rotation := service.NewIPRotationService(store.Pools(), store.Sessions(), store.RotationLogs(),
		service.DefaultRotationStrategies(), nil, zap.NewNop())
	return NewQueue(pub, rotation, store.Workers(), zap.NewNop())
}

func TestHandleTriggerPostTask(t *testing.T) {
	pub := &stubPublisher{}
	q := newTestQueue(memory.NewStore(), pub)

	err := q.HandleTriggerPostTask(context.Background(), asynq.NewTask(TaskTypeTriggerPost, []byte(`{"post_id":"p1"}`)))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, pub.triggered)

	err = q.HandleTriggerPostTask(context.Background(), asynq.NewTask(TaskTypeTriggerPost, []byte(`{"post_id":"missing"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, service.ErrPostNotFound)

	err = q.HandleTriggerPostTask(context.Background(), asynq.NewTask(TaskTypeTriggerPost, []byte(`not json`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleRotateBackoffTask_FailureSkipsRetry(t *testing.T) {
	store := memory.NewStore()
	q := newTestQueue(store, &stubPublisher{})

	err := q.HandleRotateBackoffTask(context.Background(),
		asynq.NewTask(TaskTypeRotateBackoff, []byte(`{"pool_id":"ghost","max_attempts":1}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, err.Error(), "ghost")
}

func TestHandleCampaignAssignTask(t *testing.T) {
	store := memory.NewStore()
	store.AddWorker(&models.Worker{WorkerID: "w1", IsOnline: true, IsEnabled: true})
	q := newTestQueue(store, &stubPublisher{})
	at := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return at }

	err := q.HandleCampaignAssignTask(context.Background(), asynq.NewTask(TaskTypeCampaignAssign,
		[]byte(`{"campaign_id":"campaign_1","worker_id":"w1","post_ids":["a","b"]}`)))
	require.NoError(t, err)
	require.NotNil(t, store.Worker("w1").LastJobAt)
	assert.Equal(t, at, *store.Worker("w1").LastJobAt)
}

func TestRegister(t *testing.T) {
	pub := &stubPublisher{}
	q := newTestQueue(memory.NewStore(), pub)
	mux := asynq.NewServeMux()
	q.Register(mux)

	err := mux.ProcessTask(context.Background(), asynq.NewTask(TaskTypeTriggerPost, []byte(`{"post_id":"p7"}`)))
	require.NoError(t, err)
	assert.Equal(t, []string{"p7"}, pub.triggered)
}
