package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/miniappq/internal/application"
	"github.com/ericfisherdev/miniappq/internal/domain/model"
)

var testBots = []string{"gamebot", "otherbot"}

func (f *fixture) service(policy application.FailurePolicy) *application.QueryService {
	return application.NewQueryService(f.batch(policy), f.queries, f.identities, f.proxies, testBots, 0)
}

// runService starts svc in the background, waits for the startup generation
// pass and stops the service when the test ends.
func runService(t *testing.T, svc *application.QueryService) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("query service did not stop")
		}
	})

	select {
	case <-svc.Ready():
	case err := <-errCh:
		t.Fatalf("query service exited during startup: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("query service did not become ready")
	}
}

// twoAccounts sets up user 555 (Alice) and user 777 (Bob), each with one session.
func twoAccounts(f *fixture) {
	f.platform.add("sess-alice", 555, "Alice", "")
	f.platform.add("sess-bob", 777, "Bob", "Jones")
	f.sessions.sessions = []model.Session{
		{Name: "alice.session", Data: "sess-alice"},
		{Name: "bob.session", Data: "sess-bob"},
	}
}

func TestQueryService_StartGeneratesForEveryBot(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	svc := f.service(application.AbortOnFailure)

	runService(t, svc)

	records, err := svc.List(context.Background(), model.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "gamebot", records[0].BotUsername)
	assert.Equal(t, int64(555), records[0].UserID)
	assert.Equal(t, "otherbot", records[3].BotUsername)
	assert.Equal(t, "Bob Jones", records[3].Name)
}

func TestQueryService_ListFilters(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	svc := f.service(application.AbortOnFailure)
	runService(t, svc)
	ctx := context.Background()

	byUser, err := svc.List(ctx, forUser(555))
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byBot, err := svc.List(ctx, forBot("gamebot"))
	require.NoError(t, err)
	assert.Len(t, byBot, 2)

	both, err := svc.List(ctx, forUserAndBot(555, "gamebot"))
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "query_id=555_gamebot_1", both[0].Query)
}

func TestQueryService_ListNotFound(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	svc := f.service(application.AbortOnFailure)
	runService(t, svc)
	ctx := context.Background()

	_, err := svc.List(ctx, forUser(999))
	assert.ErrorIs(t, err, application.ErrUserNotFound)

	_, err = svc.List(ctx, forBot("nobot"))
	assert.ErrorIs(t, err, application.ErrBotNotFound)

	_, err = svc.List(ctx, forUserAndBot(999, "nobot"))
	assert.ErrorIs(t, err, application.ErrUserNotFound, "user is checked before bot")
}

func TestQueryService_RefreshUserAndBot(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	svc := f.service(application.AbortOnFailure)
	runService(t, svc)
	ctx := context.Background()

	records, err := svc.Refresh(ctx, forUserAndBot(555, "gamebot"))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(555), records[0].UserID)
	assert.Equal(t, "gamebot", records[0].BotUsername)
	assert.NotEqual(t, "query_id=555_gamebot_1", records[0].Query, "record was regenerated")

	all, err := svc.List(ctx, model.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4, "records outside the scope are untouched")

	bob, err := svc.List(ctx, forUser(777))
	require.NoError(t, err)
	assert.Len(t, bob, 2)
}

func TestQueryService_RefreshUser(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	svc := f.service(application.AbortOnFailure)
	runService(t, svc)

	records, err := svc.Refresh(context.Background(), forUser(777))

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "gamebot", records[0].BotUsername)
	assert.Equal(t, "otherbot", records[1].BotUsername)
	assert.Len(t, f.queries.all(), 4)
}

func TestQueryService_RefreshBot(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	p := model.Proxy{Protocol: "socks5", Host: "10.0.0.1", Port: 1080}
	f.proxyList.proxies = []model.Proxy{p}
	svc := f.service(application.AbortOnFailure)
	runService(t, svc)

	records, err := svc.Refresh(context.Background(), forBot("otherbot"))

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(555), records[0].UserID)
	assert.Equal(t, &p, records[0].Proxy, "stored assignment is reused")
	assert.Nil(t, records[1].Proxy)
}

func TestQueryService_RefreshAll(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	svc := f.service(application.AbortOnFailure)
	runService(t, svc)

	records, err := svc.Refresh(context.Background(), model.QueryFilter{})

	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Len(t, f.queries.all(), 4, "previous records were cleared")
}

func TestQueryService_RefreshUnknownUserLeavesStore(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	svc := f.service(application.AbortOnFailure)
	runService(t, svc)
	before := f.queries.all()

	_, err := svc.Refresh(context.Background(), forUser(999))

	require.ErrorIs(t, err, application.ErrUserNotFound)
	assert.Equal(t, before, f.queries.all())
}

func TestQueryService_RefreshUnknownBotLeavesStore(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	svc := f.service(application.AbortOnFailure)
	runService(t, svc)
	before := f.queries.all()
	ctx := context.Background()

	_, err := svc.Refresh(ctx, forBot("nobot"))
	require.ErrorIs(t, err, application.ErrBotNotFound)

	_, err = svc.Refresh(ctx, forUserAndBot(555, "nobot"))
	require.ErrorIs(t, err, application.ErrBotNotFound)

	assert.Equal(t, before, f.queries.all())

	// The service keeps serving after a rejected request.
	_, err = svc.Refresh(ctx, forUser(555))
	assert.NoError(t, err)
}

func TestQueryService_StartFailsOnUnrecoverableError(t *testing.T) {
	f := newFixture()
	f.sessions.sessions = []model.Session{{Name: "dead.session", Data: "sess-dead"}}
	svc := f.service(application.AbortOnFailure)

	err := svc.Start(context.Background())

	var acqErr *application.AcquireError
	require.ErrorAs(t, err, &acqErr)

	_, err = svc.Refresh(context.Background(), model.QueryFilter{})
	assert.ErrorIs(t, err, application.ErrServiceStopped)
}

func TestQueryService_StartSkipsFailuresWhenConfigured(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	f.sessions.sessions = append(f.sessions.sessions, model.Session{Name: "dead.session", Data: "sess-dead"})
	svc := f.service(application.SkipFailures)

	runService(t, svc)

	assert.Len(t, f.queries.all(), 4)
}

func TestQueryService_StartStopsOnCancel(t *testing.T) {
	f := newFixture()
	twoAccounts(f)
	svc := f.service(application.AbortOnFailure)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, svc.Start(ctx))
}
