package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	electionservice "ballot/contexts/elections/election-service"
	"ballot/contexts/elections/election-service/adapters/security"
	"ballot/contexts/elections/election-service/application/commands"
	"ballot/contexts/elections/election-service/domain/entities"
	httptransport "ballot/contexts/elections/election-service/transport/http"
	"ballot/internal/platform/ratelimit"

	"golang.org/x/crypto/bcrypt"
)

const (
	testAdminPassword   = "correct-horse-battery"
	testAuditorPassword = "auditor-password-1"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server *Server
	module electionservice.Module
	clock  *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	module := electionservice.NewInMemoryModule(security.BcryptHasher{Cost: bcrypt.MinCost}, nil)
	ctx := context.Background()
	if _, err := module.AdminAuth.CreateAdmin(ctx, commands.CreateAdminCommand{
		Username: "operator",
		Password: testAdminPassword,
		Role:     entities.AdminRoleAdmin,
	}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := module.AdminAuth.CreateAdmin(ctx, commands.CreateAdminCommand{
		Username: "observer",
		Password: testAuditorPassword,
		Role:     entities.AdminRoleAuditor,
	}); err != nil {
		t.Fatalf("create auditor: %v", err)
	}

	clock := &fakeClock{now: time.Now().UTC()}
	limiter := ratelimit.NewLimiter(nil, ratelimit.NewMemoryCounter(100, clock.Now), map[string]ratelimit.Rule{
		ratelimit.PurposeAdminLogin:  {Max: 10, Window: time.Minute},
		ratelimit.PurposeTokenRedeem: {Max: 10, Window: time.Minute},
		ratelimit.PurposeVote:        {Max: 5, Window: time.Minute},
	}, nil)
	server, err := New(module, limiter, Options{
		CookieKey:      []byte("0123456789abcdef0123456789abcdef"),
		RequestTimeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testEnv{server: server, module: module, clock: clock}
}

func (e *testEnv) do(t *testing.T, method string, path string, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:41000"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

func (e *testEnv) adminLogin(t *testing.T, username string, password string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/v1/admin/login", "", httptransport.AdminLoginRequest{Username: username, Password: password})
	if rr.Code != http.StatusOK {
		t.Fatalf("admin login: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	return decodeBody[httptransport.AdminLoginResponse](t, rr).AccessToken
}

// seedActiveElection creates an election with two candidates and count tokens
// and activates it.
func (e *testEnv) seedActiveElection(t *testing.T, admin string, slug string, count int) (httptransport.ElectionDTO, []httptransport.CandidateDTO, []httptransport.TokenDTO) {
	t.Helper()
	now := time.Now().UTC()
	rr := e.do(t, http.MethodPost, "/api/v1/admin/elections", admin, httptransport.CreateElectionRequest{
		Slug:    slug,
		Name:    "Student council " + slug,
		StartAt: now.Add(-time.Hour).Format(time.RFC3339),
		EndAt:   now.Add(time.Hour).Format(time.RFC3339),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create election: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	election := decodeBody[httptransport.ElectionResponse](t, rr).Item
	base := "/api/v1/admin/elections/" + election.ElectionID

	var candidates []httptransport.CandidateDTO
	for number := 1; number <= 2; number++ {
		rr = e.do(t, http.MethodPost, base+"/candidates", admin, httptransport.CreateCandidateRequest{
			Number:     number,
			LeaderName: "Leader " + strconv.Itoa(number),
			DeputyName: "Deputy " + strconv.Itoa(number),
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("create candidate: expected 201, got %d body=%s", rr.Code, rr.Body.String())
		}
		candidates = append(candidates, decodeBody[httptransport.CandidateResponse](t, rr).Item)
	}

	rr = e.do(t, http.MethodPost, base+"/tokens", admin, httptransport.GenerateTokensRequest{Count: count})
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate tokens: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	tokens := decodeBody[httptransport.GenerateTokensResponse](t, rr).Items

	rr = e.do(t, http.MethodPost, base+"/activate", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("activate: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	return decodeBody[httptransport.ElectionResponse](t, rr).Item, candidates, tokens
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected X-Request-Id header")
	}
}

func TestAdminRoutesRequireBearer(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/v1/admin/elections", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodGet, "/api/v1/admin/elections", "not-a-session", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown secret, got %d", rr.Code)
	}
}

func TestAdminLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/v1/admin/login", "", httptransport.AdminLoginRequest{Username: "operator", Password: "wrong-password"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	body := decodeBody[httptransport.ErrorResponse](t, rr)
	if body.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %s", body.Code)
	}
}

func TestAdminLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	for i := 1; i <= 10; i++ {
		rr := env.do(t, http.MethodPost, "/api/v1/admin/login", "", httptransport.AdminLoginRequest{Username: "operator", Password: "wrong-password"})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rr.Code)
		}
		env.clock.Advance(time.Second)
	}
	rr := env.do(t, http.MethodPost, "/api/v1/admin/login", "", httptransport.AdminLoginRequest{Username: "operator", Password: testAdminPassword})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") != "50" {
		t.Fatalf("expected Retry-After 50, got %q", rr.Header().Get("Retry-After"))
	}

	env.clock.Advance(time.Minute)
	rr = env.do(t, http.MethodPost, "/api/v1/admin/login", "", httptransport.AdminLoginRequest{Username: "operator", Password: testAdminPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected login after window, got %d", rr.Code)
	}
}

func TestAuditorCannotMutate(t *testing.T) {
	env := newTestEnv(t)
	auditor := env.adminLogin(t, "observer", testAuditorPassword)
	rr := env.do(t, http.MethodGet, "/api/v1/admin/elections", auditor, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("auditor list: expected 200, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/v1/admin/elections", auditor, httptransport.CreateElectionRequest{
		Slug:    "blocked",
		Name:    "Blocked",
		StartAt: time.Now().UTC().Format(time.RFC3339),
		EndAt:   time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("auditor create: expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateElectionValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminLogin(t, "operator", testAdminPassword)
	rr := env.do(t, http.MethodPost, "/api/v1/admin/elections", admin, httptransport.CreateElectionRequest{
		Slug:    "Bad Slug",
		Name:    "x",
		StartAt: time.Now().UTC().Format(time.RFC3339),
		EndAt:   time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody[httptransport.ErrorResponse](t, rr)
	if body.Details["field"] != "slug" {
		t.Fatalf("expected slug field detail, got %+v", body.Details)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/admin/elections", admin, httptransport.CreateElectionRequest{
		Slug:    "no-times",
		Name:    "No times",
		StartAt: "tomorrow",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad time, got %d", rr.Code)
	}
}

func TestVoterFlowCastsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminLogin(t, "operator", testAdminPassword)
	election, candidates, tokens := env.seedActiveElection(t, admin, "council", 2)

	rr := env.do(t, http.MethodPost, "/api/v1/voter/login", "", httptransport.VoterLoginRequest{Code: tokens[0].Code})
	if rr.Code != http.StatusOK {
		t.Fatalf("voter login: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	login := decodeBody[httptransport.VoterLoginResponse](t, rr)
	if login.Election.ElectionID != election.ElectionID || login.SessionToken == "" {
		t.Fatalf("unexpected login response %+v", login)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/voter/candidates", login.SessionToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("candidates: expected 200, got %d", rr.Code)
	}
	if len(decodeBody[httptransport.VoterCandidatesResponse](t, rr).Items) != 2 {
		t.Fatalf("expected two candidates")
	}

	rr = env.do(t, http.MethodPost, "/api/v1/voter/vote", login.SessionToken, httptransport.CastVoteRequest{CandidateID: candidates[0].CandidateID})
	if rr.Code != http.StatusOK {
		t.Fatalf("vote: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/v1/voter/vote", login.SessionToken, httptransport.CastVoteRequest{CandidateID: candidates[1].CandidateID})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("second vote with ended session: expected 401, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/voter/login", "", httptransport.VoterLoginRequest{Code: tokens[0].Code})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("reusing a consumed code: expected 400 token_invalid, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/admin/elections/"+election.ElectionID+"/results", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin results: expected 200, got %d", rr.Code)
	}
	results := decodeBody[httptransport.ResultsResponse](t, rr)
	if results.TotalVotes != 1 || results.Tokens.Used != 1 || results.Tokens.Unused != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestVoterCookieSession(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminLogin(t, "operator", testAdminPassword)
	_, _, tokens := env.seedActiveElection(t, admin, "cookie-flow", 1)

	rr := env.do(t, http.MethodPost, "/api/v1/voter/login", "", httptransport.VoterLoginRequest{Code: tokens[0].Code})
	if rr.Code != http.StatusOK {
		t.Fatalf("voter login: expected 200, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected a session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/voter/candidates", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	out := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("cookie auth: expected 200, got %d body=%s", out.Code, out.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/voter/logout", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	out = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(out, req)
	if out.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", out.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/voter/candidates", nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	out = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(out, req)
	if out.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", out.Code)
	}
}

func TestConcurrentVotesWithSameSession(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminLogin(t, "operator", testAdminPassword)
	election, candidates, tokens := env.seedActiveElection(t, admin, "race", 1)

	rr := env.do(t, http.MethodPost, "/api/v1/voter/login", "", httptransport.VoterLoginRequest{Code: tokens[0].Code})
	secret := decodeBody[httptransport.VoterLoginResponse](t, rr).SessionToken

	const attempts = 4
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := env.do(t, http.MethodPost, "/api/v1/voter/vote", secret, httptransport.CastVoteRequest{
				CandidateID: candidates[i%2].CandidateID,
			})
			codes <- out.Code
		}(i)
	}
	wg.Wait()
	close(codes)

	successes := 0
	for code := range codes {
		switch code {
		case http.StatusOK:
			successes++
		case http.StatusConflict, http.StatusUnauthorized:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one accepted vote, got %d", successes)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/admin/elections/"+election.ElectionID+"/results", admin, nil)
	if decodeBody[httptransport.ResultsResponse](t, rr).TotalVotes != 1 {
		t.Fatalf("expected exactly one recorded vote")
	}
}

func TestPublicResultsGatedByPublication(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminLogin(t, "operator", testAdminPassword)
	election, candidates, tokens := env.seedActiveElection(t, admin, "gated", 3)

	for i, token := range tokens {
		rr := env.do(t, http.MethodPost, "/api/v1/voter/login", "", httptransport.VoterLoginRequest{Code: token.Code, ElectionSlug: "gated"})
		secret := decodeBody[httptransport.VoterLoginResponse](t, rr).SessionToken
		rr = env.do(t, http.MethodPost, "/api/v1/voter/vote", secret, httptransport.CastVoteRequest{CandidateID: candidates[i%2].CandidateID})
		if rr.Code != http.StatusOK {
			t.Fatalf("vote %d: expected 200, got %d", i, rr.Code)
		}
	}

	base := "/api/v1/admin/elections/" + election.ElectionID
	if rr := env.do(t, http.MethodPost, base+"/close", admin, nil); rr.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d", rr.Code)
	}
	rr := env.do(t, http.MethodGet, "/api/v1/results?slug=gated", "", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unpublished results: expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}

	if rr := env.do(t, http.MethodPost, base+"/publish-results", admin, nil); rr.Code != http.StatusOK {
		t.Fatalf("publish: expected 200, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/results?slug=gated", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("published results: expected 200, got %d", rr.Code)
	}
	public := decodeBody[httptransport.ResultsResponse](t, rr)
	var sum int64
	for _, tally := range public.Candidates {
		sum += tally.Votes
	}
	if public.TotalVotes != 3 || sum != public.TotalVotes {
		t.Fatalf("expected 3 votes matching the per-candidate sum, got total=%d sum=%d", public.TotalVotes, sum)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/results", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("latest published results: expected 200, got %d", rr.Code)
	}
}

func TestUnknownElectionIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminLogin(t, "operator", testAdminPassword)
	rr := env.do(t, http.MethodGet, "/api/v1/admin/elections/missing", admin, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if decodeBody[httptransport.ErrorResponse](t, rr).Code != "election_not_found" {
		t.Fatalf("expected election_not_found code")
	}
}
