package swipe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sohaeng-web/internal/domain"
	"github.com/Proton-105/sohaeng-web/internal/idempotency"
	"github.com/Proton-105/sohaeng-web/internal/notice"
)

const testWeek = "2025-W37"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []LikeJob
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job LikeJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []domain.LikePayload
	token string
	err   error
}

func (s *fakeSender) SendLike(_ context.Context, token string, payload domain.LikePayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.sent = append(s.sent, payload)
	return s.err
}

type fakeInvalidator struct {
	mu        sync.Mutex
	resources []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, scope, resource string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources = append(f.resources, scope+":"+resource)
	return nil
}

func staticFeed(batch []domain.RecommendationItem) Feed {
	return func(context.Context, Viewer, string) ([]domain.RecommendationItem, error) {
		return batch, nil
	}
}

func newTestService(t *testing.T, batch []domain.RecommendationItem, d Dispatcher) (*Service, *notice.Store, *redis.Client) {
	t.Helper()

	client, _ := setupTestRedis(t)
	notices := notice.NewStore(client, testLogger())
	guard := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), testLogger())

	svc := NewService(staticFeed(batch), NewRedisStorage(client, testLogger()), d, testLogger(),
		WithGuard(guard),
		WithNotifier(notices),
		WithLocks(client),
	)
	return svc, notices, client
}

func TestService_LikeDispatchesAndAdvances(t *testing.T) {
	d := &recordingDispatcher{}
	svc, _, _ := newTestService(t, items(3), d)
	v := Viewer{UserID: "me", Token: "jwt"}
	ctx := context.Background()

	flow, err := svc.Act(ctx, v, testWeek, ActionLike, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, flow.Index)

	require.Equal(t, 1, d.count())
	assert.Equal(t, "u-2", flow.Items[flow.Index].TargetUserID)
	assert.Equal(t, domain.LikePayload{ToUserID: "u-1", BatchWeek: testWeek}, d.jobs[0].Payload)
	assert.Equal(t, "jwt", d.jobs[0].Token)

	resumed, err := svc.Load(ctx, v, testWeek)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.Index)
}

func TestService_PassEmitsNothing(t *testing.T) {
	d := &recordingDispatcher{}
	svc, _, _ := newTestService(t, items(2), d)

	flow, err := svc.Act(context.Background(), Viewer{UserID: "me"}, testWeek, ActionPass, "")
	require.NoError(t, err)
	assert.Equal(t, 1, flow.Index)
	assert.Zero(t, d.count())
}

func TestService_FailedLikeStillAdvances(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("queue down")}
	svc, notices, _ := newTestService(t, items(2), d)
	v := Viewer{UserID: "me", Token: "jwt"}
	ctx := context.Background()

	flow, err := svc.Act(ctx, v, testWeek, ActionLike, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, flow.Index)

	got, err := notices.Drain(ctx, "me")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, notice.LevelError, got[0].Level)
	assert.Equal(t, LikeFailedMessage, got[0].Text)
}

func TestService_StaleCardRejected(t *testing.T) {
	d := &recordingDispatcher{}
	svc, _, _ := newTestService(t, items(3), d)
	v := Viewer{UserID: "me"}
	ctx := context.Background()

	_, err := svc.Act(ctx, v, testWeek, ActionLike, "u-1")
	require.NoError(t, err)

	// the same form submitted twice
	flow, err := svc.Act(ctx, v, testWeek, ActionLike, "u-1")
	assert.ErrorIs(t, err, ErrStaleCard)
	assert.Equal(t, 1, flow.Index)
	assert.Equal(t, 1, d.count())
}

func TestService_ExhaustAndStop(t *testing.T) {
	d := &recordingDispatcher{}
	svc, _, _ := newTestService(t, items(2), d)
	v := Viewer{UserID: "me"}
	ctx := context.Background()

	for _, a := range []Action{ActionPass, ActionLike} {
		_, err := svc.Act(ctx, v, testWeek, a, "")
		require.NoError(t, err)
	}

	flow, err := svc.Act(ctx, v, testWeek, ActionLike, "")
	assert.ErrorIs(t, err, ErrNoCurrentCard)
	assert.Equal(t, PhaseExhausted, flow.Phase())
	assert.Equal(t, 1, d.count())
}

func TestService_LockedFlow(t *testing.T) {
	svc, _, client := newTestService(t, items(2), &recordingDispatcher{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "swipe:lock:me:"+testWeek, 1, time.Minute).Err())

	_, err := svc.Act(ctx, Viewer{UserID: "me"}, testWeek, ActionPass, "")
	assert.ErrorIs(t, err, ErrFlowLocked)
}

func TestService_UnlockKeepsLockTakenByOtherRequest(t *testing.T) {
	svc, _, client := newTestService(t, items(2), &recordingDispatcher{})
	ctx := context.Background()
	key := "swipe:lock:me:" + testWeek

	token, err := svc.lock(ctx, "me", testWeek)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// the first lock expired and a second request took it over
	require.NoError(t, client.Set(ctx, key, "second-request", lockTTL).Err())
	svc.unlock(ctx, "me", testWeek, token)

	held, err := client.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "second-request", held)

	svc.unlock(ctx, "me", testWeek, "second-request")
	assert.Zero(t, client.Exists(ctx, key).Val())
}

func TestService_CursorClampedToShorterBatch(t *testing.T) {
	client, _ := setupTestRedis(t)
	store := NewRedisStorage(client, testLogger())
	ctx := context.Background()

	require.NoError(t, store.SetCursor(ctx, &Cursor{UserID: "me", Week: testWeek, Index: 7, Length: 8}))

	svc := NewService(staticFeed(items(3)), store, &recordingDispatcher{}, testLogger())
	flow, err := svc.Load(ctx, Viewer{UserID: "me"}, testWeek)
	require.NoError(t, err)
	assert.Equal(t, 3, flow.Index)
	assert.Equal(t, PhaseExhausted, flow.Phase())
}

func TestService_TransitionRecorder(t *testing.T) {
	var seen []string
	RegisterTransitionRecorder(func(from, to string) { seen = append(seen, from+"->"+to) })
	t.Cleanup(func() { RegisterTransitionRecorder(nil) })

	svc := NewService(staticFeed(items(1)), NewRedisStorage(mustClient(t), testLogger()), &recordingDispatcher{}, testLogger())
	_, err := svc.Act(context.Background(), Viewer{UserID: "me"}, testWeek, ActionPass, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"browsing->exhausted"}, seen)
}

func mustClient(t *testing.T) *redis.Client {
	client, _ := setupTestRedis(t)
	return client
}

func TestInlineDispatcher_DeliversAndInvalidates(t *testing.T) {
	sender := &fakeSender{}
	inv := &fakeInvalidator{}
	d := NewInlineDispatcher(NewDeliverer(sender, nil, inv, testLogger()), time.Second)

	payload := domain.LikePayload{ToUserID: "u-9", BatchWeek: testWeek}
	require.NoError(t, d.Dispatch(context.Background(), LikeJob{UserID: "me", Token: "jwt", Payload: payload}))
	require.NoError(t, d.Wait(context.Background()))

	assert.Equal(t, []domain.LikePayload{payload}, sender.sent)
	assert.Equal(t, "jwt", sender.token)
	assert.Equal(t, []string{"me:matches"}, inv.resources)
}

func TestInlineDispatcher_FailurePushesNotice(t *testing.T) {
	client, _ := setupTestRedis(t)
	notices := notice.NewStore(client, testLogger())
	sender := &fakeSender{err: errors.New("500")}
	d := NewInlineDispatcher(NewDeliverer(sender, notices, nil, testLogger()), time.Second)

	// a cancelled page request must not cancel the delivery
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Dispatch(ctx, LikeJob{UserID: "me", Payload: domain.LikePayload{ToUserID: "u-1"}}))
	cancel()
	require.NoError(t, d.Wait(context.Background()))

	got, err := notices.Drain(context.Background(), "me")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, LikeFailedMessage, got[0].Text)
	assert.Len(t, sender.sent, 1)
}
