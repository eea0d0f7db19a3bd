package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"

	"wolweb/internal/appconfig"
	"wolweb/internal/config"
	"wolweb/internal/ratelimit"
	"wolweb/internal/store"
	"wolweb/internal/wol"
)

type testEnv struct {
	srv      *Server
	router   http.Handler
	settings *appconfig.Store
	store    *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "wolweb.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	settings, err := appconfig.Load(filepath.Join(dir, "settings.conf"))
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	cfg := config.Config{
		DataDir:         dir,
		SessionHashKey:  securecookie.GenerateRandomKey(64),
		SessionBlockKey: securecookie.GenerateRandomKey(32),
		LoginRateLimit:  100,
		LoginRateWindow: time.Minute,
	}
	srv, err := New(cfg, st, settings, wol.New(zerolog.Nop()), ratelimit.New(filepath.Join(dir, "ratelimit.json")), zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testEnv{srv: srv, router: srv.Router(), settings: settings, store: st}
}

// client carries a cookie jar across requests, the way a browser would.
type client struct {
	t       *testing.T
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (e *testEnv) client(t *testing.T) *client {
	return &client{t: t, env: e, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var body string
	if form != nil {
		if tok, ok := c.cookies[cookieCSRF]; ok && form.Get("csrf_token") == "" {
			form.Set("csrf_token", tok.Value)
		}
		body = form.Encode()
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	res := httptest.NewRecorder()
	c.env.router.ServeHTTP(res, req)
	for _, ck := range res.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return res
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, path, nil)
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, path, form)
}

// register signs the account up and logs it in.
func (c *client) register(username, email, password string) {
	c.t.Helper()
	c.get("/register") // obtain CSRF cookie
	res := c.post("/register", url.Values{
		"username": {username}, "email": {email},
		"password": {password}, "password_confirm": {password},
	})
	if res.Code != http.StatusSeeOther {
		c.t.Fatalf("register %s: status %d", username, res.Code)
	}
	c.login(username, password)
}

func (c *client) login(username, password string) {
	c.t.Helper()
	c.get("/login")
	res := c.post("/login", url.Values{"username": {username}, "password": {password}})
	if res.Code != http.StatusSeeOther {
		c.t.Fatalf("login %s: status %d", username, res.Code)
	}
}

// flashes pulls the pending flash messages out of the jar.
func (c *client) flashes() []Flash {
	c.t.Helper()
	ck, ok := c.cookies[cookieFlash]
	if !ok {
		return nil
	}
	var out []Flash
	if err := c.env.srv.codec.Decode(cookieFlash, ck.Value, &out); err != nil {
		c.t.Fatalf("decode flash cookie: %v", err)
	}
	return out
}

func (c *client) addHost(form url.Values) {
	c.t.Helper()
	if res := c.post("/hosts", form); res.Code != http.StatusSeeOther {
		c.t.Fatalf("add host: status %d", res.Code)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	res := env.client(t).get("/healthz")
	if res.Code != http.StatusOK {
		t.Fatalf("status %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")

	res := c.get("/")
	if res.Code != http.StatusOK {
		t.Fatalf("home after login: status %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "alice") {
		t.Fatalf("home page does not show the username")
	}

	if res := c.post("/logout", url.Values{}); res.Code != http.StatusSeeOther {
		t.Fatalf("logout: status %d", res.Code)
	}
	res = c.get("/")
	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/login" {
		t.Fatalf("home after logout: status %d location %q", res.Code, res.Header().Get("Location"))
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")
	c.post("/logout", url.Values{})

	c.get("/login")
	res := c.post("/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid username or password") {
		t.Fatalf("missing error banner: %s", res.Body.String())
	}
	if _, ok := c.cookies[cookieSession]; ok {
		t.Fatalf("session cookie issued on failed login")
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg.LoginRateLimit = 2
	c := env.client(t)
	c.get("/login")

	bad := url.Values{"username": {"ghost"}, "password": {"nope"}}
	for i := 0; i < 2; i++ {
		if res := c.post("/login", bad); res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i+1, res.Code)
		}
	}
	res := c.post("/login", bad)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("throttled attempt: status %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	res := c.get("/")
	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/login" {
		t.Fatalf("status %d location %q", res.Code, res.Header().Get("Location"))
	}

	res = c.get("/hosts/1/json")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("json route: status %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("json route answered %q", ct)
	}
}

func TestCSRFRejected(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.get("/login")

	form := url.Values{"username": {"alice"}, "password": {"sekret"}, "csrf_token": {"forged"}}
	res := c.post("/login", form)
	if res.Code != http.StatusForbidden {
		t.Fatalf("status %d", res.Code)
	}
}

func TestRegistrationDisabled(t *testing.T) {
	env := newTestEnv(t)
	if err := env.settings.SetBool(appconfig.KeyRegistrationEnabled, false); err != nil {
		t.Fatal(err)
	}
	c := env.client(t)
	c.get("/about") // CSRF cookie without touching /register
	res := c.post("/register", url.Values{
		"username": {"eve"}, "email": {"eve@example.com"},
		"password": {"sekret"}, "password_confirm": {"sekret"},
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("status %d", res.Code)
	}
	if res := c.get("/register"); res.Code != http.StatusForbidden {
		t.Fatalf("register page: status %d", res.Code)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")
	c.post("/logout", url.Values{})

	c.get("/register")
	res := c.post("/register", url.Values{
		"username": {"alice"}, "email": {"other@example.com"},
		"password": {"sekret"}, "password_confirm": {"sekret"},
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("status %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "already taken") {
		t.Fatalf("missing field error: %s", res.Body.String())
	}
}

func TestFirstUserIsAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.client(t)
	alice.register("alice", "alice@example.com", "sekret")
	if res := alice.get("/admin/"); res.Code != http.StatusOK {
		t.Fatalf("first user admin page: status %d", res.Code)
	}

	bob := env.client(t)
	bob.register("bob", "bob@example.com", "sekret")
	if res := bob.get("/admin/"); res.Code != http.StatusForbidden {
		t.Fatalf("second user admin page: status %d", res.Code)
	}
}

func TestAdminDisabledHidesSubtree(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")
	if err := env.settings.SetBool(appconfig.KeyAdminEnabled, false); err != nil {
		t.Fatal(err)
	}
	if res := c.get("/admin/"); res.Code != http.StatusNotFound {
		t.Fatalf("status %d", res.Code)
	}
}

func TestHostLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")

	c.addHost(url.Values{"name": {"nas"}, "macaddress": {"aa:bb:cc:dd:ee:ff"}})

	res := c.get("/hosts/1/json")
	if res.Code != http.StatusOK {
		t.Fatalf("host json: status %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, `"name":"nas"`) || !strings.Contains(body, `"macaddress":"aa:bb:cc:dd:ee:ff"`) {
		t.Fatalf("unexpected host json: %s", body)
	}
	// Port defaults when left blank.
	if !strings.Contains(body, `"port":9`) {
		t.Fatalf("missing default port: %s", body)
	}

	if res := c.post("/hosts/1", url.Values{"name": {"nas2"}, "macaddress": {"aa:bb:cc:dd:ee:ff"}, "port": {"7"}}); res.Code != http.StatusSeeOther {
		t.Fatalf("update: status %d", res.Code)
	}
	res = c.get("/hosts/1/json")
	if !strings.Contains(res.Body.String(), `"name":"nas2"`) || !strings.Contains(res.Body.String(), `"port":7`) {
		t.Fatalf("update not persisted: %s", res.Body.String())
	}

	if res := c.post("/hosts/1/delete", url.Values{}); res.Code != http.StatusSeeOther {
		t.Fatalf("delete: status %d", res.Code)
	}
	if res := c.get("/hosts/1/json"); res.Code != http.StatusNotFound {
		t.Fatalf("deleted host json: status %d", res.Code)
	}
}

func TestHostCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")

	res := c.post("/hosts", url.Values{"name": {"nas"}, "macaddress": {"not-a-mac"}})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", res.Code)
	}
	// The submitted values come back so the form can be corrected.
	if !strings.Contains(res.Body.String(), "not-a-mac") {
		t.Fatalf("form values not echoed: %s", res.Body.String())
	}
}

func TestHostDuplicateSkipped(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")

	form := url.Values{"name": {"nas"}, "macaddress": {"aa:bb:cc:dd:ee:ff"}}
	c.addHost(form)
	res := c.post("/hosts", url.Values{"name": {"nas"}, "macaddress": {"aa:bb:cc:dd:ee:ff"}})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("duplicate create: status %d", res.Code)
	}
	fl := c.flashes()
	if len(fl) == 0 || fl[len(fl)-1].Level != "warning" {
		t.Fatalf("expected warning flash, got %+v", fl)
	}
}

func TestHostOwnershipIsolation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.client(t)
	alice.register("alice", "alice@example.com", "sekret")
	alice.addHost(url.Values{"name": {"nas"}, "macaddress": {"aa:bb:cc:dd:ee:ff"}})

	bob := env.client(t)
	bob.register("bob", "bob@example.com", "sekret")

	if res := bob.get("/hosts/1/json"); res.Code != http.StatusNotFound {
		t.Fatalf("foreign host json: status %d", res.Code)
	}
	if res := bob.post("/hosts/1/wake", url.Values{}); res.Code != http.StatusNotFound {
		t.Fatalf("foreign host wake: status %d", res.Code)
	}
	if res := bob.post("/hosts/1/delete", url.Values{}); res.Code != http.StatusNotFound {
		t.Fatalf("foreign host delete: status %d", res.Code)
	}
	// The row is untouched.
	if res := alice.get("/hosts/1/json"); res.Code != http.StatusOK {
		t.Fatalf("owner host json after foreign delete: status %d", res.Code)
	}
}

// pointSettingsAt aims the wake proxy settings at a test server.
func pointSettingsAt(t *testing.T, settings *appconfig.Store, ts *httptest.Server) {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	for key, val := range map[string]string{
		appconfig.KeyAPIProto: u.Scheme,
		appconfig.KeyAPIHost:  u.Hostname(),
		appconfig.KeyAPIPort:  u.Port(),
	} {
		if err := settings.Set(key, val); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHostWake(t *testing.T) {
	env := newTestEnv(t)
	var gotPath string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()
	pointSettingsAt(t, env.settings, proxy)

	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")
	c.addHost(url.Values{"name": {"nas"}, "macaddress": {"aa:bb:cc:dd:ee:ff"}})

	res := c.post("/hosts/1/wake", url.Values{})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("wake: status %d", res.Code)
	}
	if gotPath != "/wol" {
		t.Fatalf("proxy path %q", gotPath)
	}
	fl := c.flashes()
	if len(fl) == 0 || fl[len(fl)-1].Level != "success" {
		t.Fatalf("expected success flash, got %+v", fl)
	}
}

func TestHostWakeProxyRejected(t *testing.T) {
	env := newTestEnv(t)
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer proxy.Close()
	pointSettingsAt(t, env.settings, proxy)

	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")
	c.addHost(url.Values{"name": {"nas"}, "macaddress": {"aa:bb:cc:dd:ee:ff"}})

	res := c.post("/hosts/1/wake", url.Values{})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("wake: status %d", res.Code)
	}
	fl := c.flashes()
	if len(fl) == 0 || fl[len(fl)-1].Level != "warning" {
		t.Fatalf("expected warning flash, got %+v", fl)
	}
}

func TestAdminSettingsUpdate(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.register("alice", "alice@example.com", "sekret")

	res := c.post("/admin/api", url.Values{
		"api_proto": {"https"}, "api_host": {"wol.internal"}, "api_port": {"9001"}, "api_key": {"s3cr3t"},
	})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("status %d", res.Code)
	}
	if got := env.settings.WakeProxyURL(); got != "https://wol.internal:9001" {
		t.Fatalf("proxy url %q", got)
	}

	res = c.post("/admin/api", url.Values{
		"api_proto": {"gopher"}, "api_host": {"x"}, "api_port": {"1"}, "api_key": {""},
	})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("status %d", res.Code)
	}
	if got := env.settings.Get(appconfig.KeyAPIProto); got != "https" {
		t.Fatalf("invalid proto persisted: %q", got)
	}
	fl := c.flashes()
	if len(fl) == 0 || fl[len(fl)-1].Level != "danger" {
		t.Fatalf("expected danger flash, got %+v", fl)
	}
}

func TestSuperuserProtected(t *testing.T) {
	env := newTestEnv(t)
	alice := env.client(t)
	alice.register("alice", "alice@example.com", "sekret")
	env.client(t).register("bob", "bob@example.com", "sekret")

	res := alice.post("/admin/users/1/admin", url.Values{"is_admin": {"false"}})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("demote: status %d", res.Code)
	}
	fl := alice.flashes()
	if len(fl) == 0 || fl[len(fl)-1].Level != "warning" {
		t.Fatalf("expected warning flash, got %+v", fl)
	}
	u, err := env.store.Users.GetByID(context.Background(), store.SuperuserID)
	if err != nil || !u.IsAdmin {
		t.Fatalf("superuser demoted: %+v err=%v", u, err)
	}

	res = alice.post("/admin/users/1/delete", url.Values{})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("delete: status %d", res.Code)
	}
	if _, err := env.store.Users.GetByID(context.Background(), store.SuperuserID); err != nil {
		t.Fatalf("superuser deleted: %v", err)
	}

	// The ordinary second account can be promoted and deleted.
	if res := alice.post("/admin/users/2/admin", url.Values{"is_admin": {"true"}}); res.Code != http.StatusSeeOther {
		t.Fatalf("promote bob: status %d", res.Code)
	}
	if res := alice.post("/admin/users/2/delete", url.Values{}); res.Code != http.StatusSeeOther {
		t.Fatalf("delete bob: status %d", res.Code)
	}
	if _, err := env.store.Users.GetByID(context.Background(), 2); err == nil {
		t.Fatalf("bob still present after delete")
	}
}

func TestDeletedUserSessionInvalid(t *testing.T) {
	env := newTestEnv(t)
	alice := env.client(t)
	alice.register("alice", "alice@example.com", "sekret")
	bob := env.client(t)
	bob.register("bob", "bob@example.com", "sekret")

	if res := alice.post("/admin/users/2/delete", url.Values{}); res.Code != http.StatusSeeOther {
		t.Fatalf("delete bob: status %d", res.Code)
	}
	// Bob still holds a cryptographically valid cookie, but the row is
	// gone, so the session carries no identity.
	res := bob.get("/")
	if res.Code != http.StatusSeeOther || res.Header().Get("Location") != "/login" {
		t.Fatalf("deleted user request: status %d location %q", res.Code, res.Header().Get("Location"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)
	c.get("/healthz")
	res := c.get("/metrics")
	if res.Code != http.StatusOK {
		t.Fatalf("status %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "wolweb_http_requests_total") {
		t.Fatalf("missing request counter in metrics output")
	}
}
