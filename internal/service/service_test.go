package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/internal/pipeline"
	"github.com/tripcrew/trip-planner/internal/store"
	"github.com/tripcrew/trip-planner/pkg/logger"
)

type fakePipeline struct {
	out   string
	err   error
	calls int
}

func (f *fakePipeline) Run(context.Context, model.TripRequest) (string, error) {
	f.calls++
	return f.out, f.err
}

func validTrip() model.TripRequest {
	return model.TripRequest{
		Origin:    "Shanghai",
		Cities:    []string{"Tokyo"},
		DateRange: "2025-10-01 ~ 2025-10-02",
	}
}

func TestPlannerPlan(t *testing.T) {
	p := &fakePipeline{out: "Intro\n## 2025-10-01 Arrival\n- Check in\n- Ramen\n## 2025-10-02\n1. Senso-ji"}
	svc := NewPlannerService(p, logger.NewNop())

	plan, err := svc.Plan(context.Background(), validTrip())
	require.NoError(t, err)

	require.Len(t, plan.Days, 2)
	assert.Equal(t, model.DayPlan{Date: "2025-10-01", Activities: []string{"Check in", "Ramen"}}, plan.Days[0])
	assert.Equal(t, []string{"Senso-ji"}, plan.Days[1].Activities)
	assert.Equal(t, p.out, plan.RawMarkdown)
	assert.Contains(t, plan.Summary, "2-days")
}

func TestPlannerPlanValidatesBeforeRunning(t *testing.T) {
	p := &fakePipeline{}
	svc := NewPlannerService(p, logger.NewNop())

	req := validTrip()
	req.Origin = " "
	req.Cities = nil

	_, err := svc.Plan(context.Background(), req)
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"origin", "cities"}, ve.Fields)
	assert.Zero(t, p.calls)
}

func TestPlannerPlanPassesPipelineErrors(t *testing.T) {
	timeout := &pipeline.TimeoutError{Limit: time.Second}
	svc := NewPlannerService(&fakePipeline{err: timeout}, logger.NewNop())

	_, err := svc.Plan(context.Background(), validTrip())
	assert.True(t, errors.Is(err, pipeline.ErrTimeout))
}

func TestPlannerDegradedDates(t *testing.T) {
	svc := NewPlannerService(&fakePipeline{out: "no headings here"}, logger.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC) }

	req := validTrip()
	req.DateRange = "sometime soon"

	plan, err := svc.Plan(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, plan.Days, 1)
	assert.Equal(t, "2025-09-15", plan.Days[0].Date)
	assert.Empty(t, plan.Days[0].Activities)
}

func TestPlannerCalendar(t *testing.T) {
	p := &fakePipeline{}
	svc := NewPlannerService(p, logger.NewNop())

	resp, err := svc.Calendar(validTrip())
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(resp.ICS, "BEGIN:VEVENT"))
	assert.Contains(t, resp.ICS, "DTSTART;VALUE=DATE:20251001")
	assert.Contains(t, resp.ICS, "SUMMARY:Trip to Tokyo 2025-10-01")
	assert.NotEmpty(t, resp.RawMarkdown)
	assert.Zero(t, p.calls)

	_, err = svc.Calendar(model.TripRequest{})
	assert.Error(t, err)
}

type fakePlanStore struct {
	saved     []string
	replanned []string
	err       error
	active    bool
}

func (f *fakePlanStore) SavePlan(_ context.Context, userID int64, title string, _ model.JSONMap, _ *string, _ *int) (int64, int, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.saved = append(f.saved, title)
	return 7, len(f.saved), nil
}

func (f *fakePlanStore) ListPlans(context.Context, int64) ([]model.PlanSummary, error) {
	return []model.PlanSummary{{ID: 7, Title: "Tokyo Trip", LatestVersion: len(f.saved)}}, f.err
}

func (f *fakePlanStore) ListVersions(context.Context, int64, int64) ([]model.PlanVersion, error) {
	return nil, f.err
}

func (f *fakePlanStore) ToggleFavorite(context.Context, int64, int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.active = !f.active
	return f.active, nil
}

func (f *fakePlanStore) Replan(_ context.Context, planID, versionID int64, feedback string, _ int64) (int64, int, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.replanned = append(f.replanned, feedback)
	return planID, int(versionID) + 10, nil
}

func (f *fakePlanStore) DeletePlan(context.Context, int64, int64) error {
	return f.err
}

type fakeEvents struct {
	mu        sync.Mutex
	published []model.PlanEvent
	err       error
}

func (f *fakeEvents) PublishPlanEvent(_ context.Context, e *model.PlanEvent) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.published = append(f.published, *e)
	return uint64(len(f.published)), nil
}

func (f *fakeEvents) RecentEvents(_ context.Context, userID int64, after uint64, limit int) ([]model.PlanEvent, uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PlanEvent
	for i, e := range f.published {
		if e.UserID == userID && uint64(i+1) > after && len(out) < limit {
			e.Sequence = uint64(i + 1)
			out = append(out, e)
		}
	}
	return out, uint64(len(f.published)), false, nil
}

func TestPlanServiceSavePublishesEvent(t *testing.T) {
	st := &fakePlanStore{}
	ev := &fakeEvents{}
	svc := NewPlanService(st, ev, logger.NewNop())

	resp, err := svc.Save(context.Background(), 3, &model.SavePlanRequest{Title: "  Tokyo Trip ", Data: model.JSONMap{}})
	require.NoError(t, err)
	assert.Equal(t, &model.SavePlanResponse{PlanID: 7, Version: 1}, resp)
	assert.Equal(t, []string{"Tokyo Trip"}, st.saved)

	require.Len(t, ev.published, 1)
	e := ev.published[0]
	assert.Equal(t, model.EventTypeVersionCreated, e.Type)
	assert.Equal(t, int64(3), e.UserID)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, "save", e.Source)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestPlanServiceSaveValidation(t *testing.T) {
	svc := NewPlanService(&fakePlanStore{}, nil, logger.NewNop())

	_, err := svc.Save(context.Background(), 1, &model.SavePlanRequest{Title: " "})
	var ve *model.ValidationError
	assert.True(t, errors.As(err, &ve))

	bad := 9
	_, err = svc.Save(context.Background(), 1, &model.SavePlanRequest{Title: "x", Rating: &bad})
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"rating"}, ve.Fields)
}

func TestPlanServicePublishFailureIsNotFatal(t *testing.T) {
	ev := &fakeEvents{err: errors.New("nats down")}
	svc := NewPlanService(&fakePlanStore{}, ev, logger.NewNop())

	_, err := svc.Save(context.Background(), 1, &model.SavePlanRequest{Title: "x"})
	assert.NoError(t, err)

	fav, err := svc.ToggleFavorite(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.True(t, fav.Active)
}

func TestPlanServiceStoreErrorsPassThrough(t *testing.T) {
	svc := NewPlanService(&fakePlanStore{err: store.ErrForbidden}, &fakeEvents{}, logger.NewNop())

	_, err := svc.Versions(context.Background(), 1, 7)
	assert.ErrorIs(t, err, store.ErrForbidden)
	_, err = svc.Replan(context.Background(), 1, &model.ReplanRequest{PlanID: 7, Version: 1, Feedback: "less walking"})
	assert.ErrorIs(t, err, store.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(context.Background(), 1, 7), store.ErrForbidden)
}

func TestPlanServiceReplan(t *testing.T) {
	st := &fakePlanStore{}
	ev := &fakeEvents{}
	svc := NewPlanService(st, ev, logger.NewNop())

	_, err := svc.Replan(context.Background(), 1, &model.ReplanRequest{PlanID: 7, Version: 2, Feedback: "  "})
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))

	resp, err := svc.Replan(context.Background(), 1, &model.ReplanRequest{PlanID: 7, Version: 2, Feedback: " more museums "})
	require.NoError(t, err)
	assert.Equal(t, 12, resp.Version)
	assert.Equal(t, []string{"more museums"}, st.replanned)

	require.Len(t, ev.published, 1)
	assert.Equal(t, "replan", ev.published[0].Source)
	assert.Equal(t, int64(2), ev.published[0].Metadata["from_version_id"])
}

func TestPlanServiceActivity(t *testing.T) {
	_, err := NewPlanService(&fakePlanStore{}, nil, logger.NewNop()).Activity(context.Background(), 1, 0, 10)
	assert.ErrorIs(t, err, ErrEventsDisabled)

	ev := &fakeEvents{}
	svc := NewPlanService(&fakePlanStore{}, ev, logger.NewNop())
	require.NoError(t, svc.Delete(context.Background(), 1, 7))
	_, err = svc.ToggleFavorite(context.Background(), 2, 8)
	require.NoError(t, err)

	resp, err := svc.Activity(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, model.EventTypePlanDeleted, resp.Events[0].Type)
	assert.Equal(t, uint64(2), resp.LastSequence)
}

type memUsers struct {
	users map[string]*model.User
}

func (m *memUsers) CreateUser(_ context.Context, username, hash string) (*model.User, error) {
	if _, ok := m.users[username]; ok {
		return nil, store.ErrDuplicate
	}
	u := &model.User{ID: int64(len(m.users) + 1), Username: username, PasswordHash: hash}
	m.users[username] = u
	return u, nil
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func newTestAuth() (*AuthService, *memUsers) {
	users := &memUsers{users: map[string]*model.User{}}
	svc := NewAuthService(users, "test-secret", time.Hour)
	svc.cost = bcrypt.MinCost
	return svc, users
}

func TestAuthRegisterAndLogin(t *testing.T) {
	svc, users := newTestAuth()
	ctx := context.Background()

	reg, err := svc.Register(ctx, &model.CredentialsRequest{Username: "dana", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", users.users["dana"].PasswordHash)

	token, err := jwt.Parse(reg.Token, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	sub, err := token.Claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "1", sub)

	_, err = svc.Register(ctx, &model.CredentialsRequest{Username: "dana", Password: "other-pass"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	login, err := svc.Login(ctx, &model.CredentialsRequest{Username: "dana", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)

	_, err = svc.Login(ctx, &model.CredentialsRequest{Username: "dana", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, &model.CredentialsRequest{Username: "erin", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthTokenExpiry(t *testing.T) {
	svc, _ := newTestAuth()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	reg, err := svc.Register(context.Background(), &model.CredentialsRequest{Username: "old", Password: "secret1"})
	require.NoError(t, err)

	_, err = jwt.Parse(reg.Token, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
