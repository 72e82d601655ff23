package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ericfisherdev/miniappq/internal/domain/model"
	"github.com/ericfisherdev/miniappq/internal/domain/port/driven"
)

// --- Platform fake ---

type connectCall struct {
	Session string
	Proxy   *model.Proxy
}

// fakeAccount scripts one session's behavior. webView, when set, is called with
// the bot and the 1-based call count for that session.
type fakeAccount struct {
	account model.Account
	selfErr error
	webView func(bot string, call int) (string, error)
}

type fakePlatform struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount
	connects []connectCall
	calls    map[string]int
	params   []model.WebAppParams
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		accounts: make(map[string]*fakeAccount),
		calls:    make(map[string]int),
	}
}

func (p *fakePlatform) add(session string, id int64, firstName, lastName string) *fakeAccount {
	acct := &fakeAccount{account: model.Account{ID: id, FirstName: firstName, LastName: lastName}}
	p.accounts[session] = acct
	return acct
}

func (p *fakePlatform) WithSession(ctx context.Context, session string, proxy *model.Proxy, fn func(ctx context.Context, conn driven.Conn) error) error {
	p.mu.Lock()
	p.connects = append(p.connects, connectCall{Session: session, Proxy: proxy})
	acct, ok := p.accounts[session]
	p.mu.Unlock()

	if !ok {
		return errors.New("AUTH_KEY_UNREGISTERED")
	}
	return fn(ctx, &fakeConn{platform: p, session: session, acct: acct})
}

func (p *fakePlatform) connectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connects)
}

type fakeConn struct {
	platform *fakePlatform
	session  string
	acct     *fakeAccount
}

func (c *fakeConn) Self(_ context.Context) (model.Account, error) {
	if c.acct.selfErr != nil {
		return model.Account{}, c.acct.selfErr
	}
	return c.acct.account, nil
}

func (c *fakeConn) RequestAppWebView(_ context.Context, bot string, params model.WebAppParams) (string, error) {
	c.platform.mu.Lock()
	c.platform.calls[c.session]++
	call := c.platform.calls[c.session]
	c.platform.params = append(c.platform.params, params)
	c.platform.mu.Unlock()

	if c.acct.webView != nil {
		return c.acct.webView(bot, call)
	}
	return webViewURL(c.acct.account.ID, bot, call), nil
}

// webViewURL builds a redirect URL whose launch data decodes to
// "query_id=<id>_<bot>_<call>".
func webViewURL(id int64, bot string, call int) string {
	return fmt.Sprintf("https://game.example/#tgWebAppData=query_id%%3D%d_%s_%d&tgWebAppVersion=7.10&tgWebAppPlatform=ios", id, bot, call)
}

// --- Validator fake ---

type fakeValidator struct {
	mu     sync.Mutex
	bad    map[string]bool
	probed []string
}

func (v *fakeValidator) Validate(_ context.Context, proxy model.Proxy) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.probed = append(v.probed, proxy.Addr())
	return !v.bad[proxy.Addr()]
}

// --- In-memory stores ---

type memQueryStore struct {
	mu      sync.Mutex
	records []model.QueryRecord
}

func (m *memQueryStore) Insert(_ context.Context, rec model.QueryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memQueryStore) List(_ context.Context, filter model.QueryFilter) ([]model.QueryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QueryRecord
	for _, r := range m.records {
		if matches(filter, r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memQueryStore) Clear(_ context.Context, filter model.QueryFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.QueryRecord
	var removed int64
	for _, r := range m.records {
		if matches(filter, r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}

func (m *memQueryStore) HasUser(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memQueryStore) HasBot(_ context.Context, bot string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.BotUsername == bot {
			return true, nil
		}
	}
	return false, nil
}

func (m *memQueryStore) all() []model.QueryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.QueryRecord(nil), m.records...)
}

type identityLink struct {
	UserID  int64
	Session string
}

type memIdentityStore struct {
	mu    sync.Mutex
	links []identityLink
}

func (m *memIdentityStore) Link(_ context.Context, userID int64, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, identityLink{UserID: userID, Session: session})
	return nil
}

func (m *memIdentityStore) IsKnown(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memIdentityStore) SessionsFor(_ context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, l := range m.links {
		if l.UserID == userID && !seen[l.Session] {
			seen[l.Session] = true
			out = append(out, l.Session)
		}
	}
	return out, nil
}

type memProxyStore struct {
	mu          sync.Mutex
	assignments []model.ProxyAssignment
}

func (m *memProxyStore) Assign(_ context.Context, session string, proxy *model.Proxy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.Session == session {
			return nil
		}
	}
	m.assignments = append(m.assignments, model.ProxyAssignment{Session: session, Proxy: proxy})
	return nil
}

func (m *memProxyStore) Get(_ context.Context, session string) (*model.Proxy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.Session == session {
			return a.Proxy, nil
		}
	}
	return nil, nil
}

func (m *memProxyStore) ListAll(_ context.Context) ([]model.ProxyAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ProxyAssignment(nil), m.assignments...), nil
}

func (m *memProxyStore) Populated(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assignments) > 0, nil
}

// --- Sources ---

type fakeSessionSource struct {
	mu       sync.Mutex
	sessions []model.Session
}

func (f *fakeSessionSource) ListSessions(_ context.Context) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Session(nil), f.sessions...), nil
}

type fakeProxySource struct {
	proxies []model.Proxy
	loads   int
}

func (f *fakeProxySource) LoadProxies(_ context.Context) ([]model.Proxy, error) {
	f.loads++
	return f.proxies, nil
}

// --- Sleep recorder ---

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum time.Duration
	for _, d := range r.sleeps {
		sum += d
	}
	return sum
}

func noJitter(time.Duration) time.Duration { return 0 }

// --- Fixture ---

type fixture struct {
	platform   *fakePlatform
	validator  *fakeValidator
	queries    *memQueryStore
	identities *memIdentityStore
	proxies    *memProxyStore
	sessions   *fakeSessionSource
	proxyList  *fakeProxySource
	sleeper    *sleepRecorder
}

func newFixture() *fixture {
	return &fixture{
		platform:   newFakePlatform(),
		validator:  &fakeValidator{bad: make(map[string]bool)},
		queries:    &memQueryStore{},
		identities: &memIdentityStore{},
		proxies:    &memProxyStore{},
		sessions:   &fakeSessionSource{},
		proxyList:  &fakeProxySource{},
		sleeper:    &sleepRecorder{},
	}
}

var testParams = model.WebAppParams{Platform: "ios", StartParam: "6094625904", ShortName: "app"}

func forUser(userID int64) model.QueryFilter {
	return model.QueryFilter{UserID: &userID}
}

func forBot(bot string) model.QueryFilter {
	return model.QueryFilter{Bot: bot}
}

func forUserAndBot(userID int64, bot string) model.QueryFilter {
	return model.QueryFilter{UserID: &userID, Bot: bot}
}

func matches(filter model.QueryFilter, rec model.QueryRecord) bool {
	if filter.UserID != nil && *filter.UserID != rec.UserID {
		return false
	}
	return filter.Bot == "" || filter.Bot == rec.BotUsername
}
