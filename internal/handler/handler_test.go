package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/classroom/internal/i18n"
	"github.com/pavelanni/classroom/internal/model"
	"github.com/pavelanni/classroom/internal/quiz"
	"github.com/pavelanni/classroom/internal/session"
	"github.com/pavelanni/classroom/internal/store"
)

const testCSRF = "test-csrf-token"

type testEnv struct {
	db      *store.Store
	reg     *session.Registry
	handler *Handler
	router  http.Handler
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg := session.New(session.Config{TTL: session.DefaultTTL})
	dataDir := t.TempDir()
	machine := quiz.NewMachine(db, reg, quiz.NewReportDir(filepath.Join(dataDir, "reports")))
	h, err := New(db, reg, machine, model.AppConfig{
		DataDir:     dataDir,
		SessionTTL:  session.DefaultTTL,
		MaxUploadMB: 10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r := chi.NewRouter()
	r.Use(appI18n.Middleware())
	r.Use(h.BasePathMiddleware)
	h.Routes(r)
	return &testEnv{db: db, reg: reg, handler: h, router: r, dataDir: dataDir}
}

// addUser stores a user and returns a live session token for it.
func (e *testEnv) addUser(t *testing.T, username string, role model.UserRole) string {
	t.Helper()
	hash, err := store.HashPassword("secret1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.db.CreateUser(model.User{Username: username, Nickname: username, PasswordHash: hash, Role: role, Active: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	tok, err := e.reg.Create(username, role)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testCSRF})
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(target, token string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, target, nil), token)
}

func (e *testEnv) postForm(target string, vals url.Values, token string) *httptest.ResponseRecorder {
	if vals == nil {
		vals = url.Values{}
	}
	vals.Set(csrfFieldName, testCSRF)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, token)
}

func (e *testEnv) postJSON(target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeaderName, testCSRF)
	return e.do(req, token)
}

func sessionCookie(rec *httptest.ResponseRecorder) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c.Value
		}
	}
	return ""
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.get("/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterThenLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.postForm("/register", url.Values{"username": {"alice_1"}, "password": {"secret1"}}, "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login?registered=1" {
		t.Fatalf("register = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = e.postForm("/login", url.Values{"username": {"alice_1"}, "password": {"wrong"}}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", rec.Code)
	}

	rec = e.postForm("/login", url.Values{"username": {"alice_1"}, "password": {"secret1"}}, "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login = %d", rec.Code)
	}
	tok := sessionCookie(rec)
	if tok == "" {
		t.Fatal("no session cookie set")
	}
	id, ok := e.reg.Resolve(tok)
	if !ok || id.Username != "alice_1" || id.Role != model.UserRoleStudent {
		t.Fatalf("session identity = %+v, %v", id, ok)
	}

	rec = e.get("/", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("home = %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t)
	e.addUser(t, "taken", model.UserRoleStudent)

	tests := []struct {
		name     string
		username string
		password string
		want     int
	}{
		{"short username", "a", "secret1", http.StatusBadRequest},
		{"bad characters", "bad name", "secret1", http.StatusBadRequest},
		{"short password", "carol", "123", http.StatusBadRequest},
		{"duplicate", "taken", "secret1", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := e.db.UserCount()
			rec := e.postForm("/register", url.Values{"username": {tt.username}, "password": {tt.password}}, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if after, _ := e.db.UserCount(); after != before {
				t.Errorf("user count changed %d -> %d", before, after)
			}
		})
	}
}

func TestUnauthenticated(t *testing.T) {
	e := newTestEnv(t)

	rec := e.get("/quiz", "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("page = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = e.get("/api/quiz/state", "bogus")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("api = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.Header.Set("HX-Request", "true")
	rec = e.do(req, "")
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("htmx = %d %q", rec.Code, rec.Header().Get("HX-Redirect"))
	}
}

func TestCSRFRequired(t *testing.T) {
	e := newTestEnv(t)
	tok := e.addUser(t, "alice", model.UserRoleStudent)

	req := httptest.NewRequest(http.MethodPost, "/api/quiz/finish", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tok})
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing token = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/quiz/finish", strings.NewReader(`{}`))
	req.Header.Set(csrfHeaderName, "other-token-value")
	rec = e.do(req, tok)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mismatched token = %d", rec.Code)
	}
}

func TestAuthorizationMatrix(t *testing.T) {
	e := newTestEnv(t)
	alice := e.addUser(t, "alice", model.UserRoleStudent)
	e.addUser(t, "bob", model.UserRoleStudent)
	admin := e.addUser(t, "root", model.UserRoleAdmin)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		want   int
	}{
		{"student home", http.MethodGet, "/", alice, http.StatusOK},
		{"student admin page", http.MethodGet, "/admin/users", alice, http.StatusForbidden},
		{"admin admin page", http.MethodGet, "/admin/users", admin, http.StatusOK},
		{"student reset api", http.MethodPost, "/api/admin/reset", alice, http.StatusForbidden},
		{"admin reset api", http.MethodPost, "/api/admin/reset", admin, http.StatusOK},
		{"own reports", http.MethodGet, "/reports/alice", alice, http.StatusOK},
		{"other student's reports", http.MethodGet, "/reports/bob", alice, http.StatusForbidden},
		{"admin reads student reports", http.MethodGet, "/reports/bob", admin, http.StatusOK},
		{"student export", http.MethodGet, "/admin/reports/export", alice, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.method == http.MethodPost {
				rec = e.postJSON(tt.target, `{}`, tt.token)
			} else {
				rec = e.get(tt.target, tt.token)
			}
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.target, rec.Code, tt.want)
			}
		})
	}

	rec := e.postJSON("/api/admin/reset", `{}`, alice)
	if strings.TrimSpace(rec.Body.String()) != `{"error":"forbidden"}` {
		t.Errorf("forbidden api body = %s", rec.Body.String())
	}
}

func TestQuizOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	tok := e.addUser(t, "alice", model.UserRoleStudent)
	qid, err := e.db.InsertQuestion(model.Question{Content: "Alpha rhythm?", OptionA: "8-13 Hz", OptionB: "b", OptionC: "c", OptionD: "d", Correct: model.OptionA})
	if err != nil {
		t.Fatal(err)
	}

	rec := e.get("/quiz", tok)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Alpha rhythm?") {
		t.Fatalf("quiz page = %d", rec.Code)
	}
	if _, ok := e.reg.QuizTimer(tok); !ok {
		t.Error("opening the quiz did not start the timer")
	}

	body := `{"question_id":` + jsonInt(qid) + `,"option":"A"}`
	rec = e.postJSON("/api/quiz/answer", body, tok)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"is_correct":true}` {
		t.Fatalf("answer = %d %s", rec.Code, rec.Body.String())
	}
	rec = e.postJSON("/api/quiz/answer", `{"question_id":`+jsonInt(qid)+`,"option":"Z"}`, tok)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid option = %d", rec.Code)
	}
	rec = e.postJSON("/api/quiz/answer", `{"question_id":424242,"option":"A"}`, tok)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown question = %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		rec = e.postJSON("/api/quiz/finish", `{}`, tok)
		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
			t.Fatalf("finish #%d = %d %s", i+1, rec.Code, rec.Body.String())
		}
	}

	rec = e.get("/api/quiz/state", tok)
	var state map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil || state["state"] != "locked" {
		t.Fatalf("state = %s (%v)", rec.Body.String(), err)
	}

	rec = e.get("/reports/alice/report_1.md", tok)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "| Grade | A |") {
		t.Fatalf("report = %d %s", rec.Code, rec.Body.String())
	}
	rec = e.get("/reports/alice/report_1.md?format=html", tok)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<table>") {
		t.Fatalf("html report = %d", rec.Code)
	}
	if rec := e.get("/reports/alice/report_2.md", tok); rec.Code != http.StatusNotFound {
		t.Errorf("missing report = %d", rec.Code)
	}
	if rec := e.get("/reports/alice/secrets.txt", tok); rec.Code != http.StatusNotFound {
		t.Errorf("bad report name = %d", rec.Code)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestStreamRoute(t *testing.T) {
	e := newTestEnv(t)
	tok := e.addUser(t, "alice", model.UserRoleStudent)

	data := bytes.Repeat([]byte("0123456789"), 100)
	if err := os.WriteFile(filepath.Join(e.dataDir, "videos", "lecture.mp4"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := e.db.InsertVideo(model.Video{Title: "Lecture", Filename: "lecture.mp4", UploadedBy: "root"})
	if err != nil {
		t.Fatal(err)
	}
	missing, err := e.db.InsertVideo(model.Video{Title: "Gone", Filename: "gone.mp4", UploadedBy: "root"})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/videos/"+jsonInt(id)+"/stream", nil)
	req.Header.Set("Range", "bytes=100-199")
	rec := e.do(req, tok)
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("stream = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 100-199/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), data[100:200]) {
		t.Error("body mismatch")
	}

	if rec := e.get("/videos/"+jsonInt(missing)+"/stream", tok); rec.Code != http.StatusNotFound {
		t.Errorf("missing file = %d", rec.Code)
	}
	if rec := e.get("/videos/9999/stream", tok); rec.Code != http.StatusNotFound {
		t.Errorf("unknown video = %d", rec.Code)
	}
	if rec := e.get("/videos/"+jsonInt(id)+"/stream", ""); rec.Code != http.StatusSeeOther {
		t.Errorf("anonymous stream = %d", rec.Code)
	}

	rec = e.postJSON("/api/progress", `{"video_id":`+jsonInt(id)+`,"progress":"42.5"}`, tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("save progress = %d %s", rec.Code, rec.Body.String())
	}
	rec = e.get("/api/progress", tok)
	if !strings.Contains(rec.Body.String(), `"progress":"42.5"`) {
		t.Errorf("progress = %s", rec.Body.String())
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	e := newTestEnv(t)
	tok := e.addUser(t, "alice", model.UserRoleStudent)

	rec := e.postForm("/logout", nil, tok)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("logout = %d", rec.Code)
	}
	if _, ok := e.reg.Resolve(tok); ok {
		t.Error("session still resolves after logout")
	}
	if rec := e.get("/", tok); rec.Code != http.StatusSeeOther {
		t.Errorf("home after logout = %d", rec.Code)
	}
}

func TestAdminDeleteUser(t *testing.T) {
	e := newTestEnv(t)
	admin := e.addUser(t, "root", model.UserRoleAdmin)
	alice := e.addUser(t, "alice", model.UserRoleStudent)

	rec := e.postForm("/admin/users/alice/delete", nil, admin)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete = %d", rec.Code)
	}
	if u, _ := e.db.GetUserByUsername("alice"); u != nil {
		t.Error("user still stored")
	}
	if _, ok := e.reg.Resolve(alice); ok {
		t.Error("deleted user's session still live")
	}
	if rec := e.postForm("/admin/users/alice/delete", nil, admin); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
	if rec := e.postForm("/admin/users/root/delete", nil, admin); rec.Code != http.StatusBadRequest {
		t.Errorf("self delete = %d", rec.Code)
	}
}

func TestAdminCreateUserAndDisable(t *testing.T) {
	e := newTestEnv(t)
	admin := e.addUser(t, "root", model.UserRoleAdmin)

	rec := e.postForm("/admin/users", url.Values{"username": {"staff2"}, "password": {"secret1"}, "role": {"admin"}}, admin)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create = %d", rec.Code)
	}
	u, _ := e.db.GetUserByUsername("staff2")
	if u == nil || u.Role != model.UserRoleAdmin {
		t.Fatalf("created user = %+v", u)
	}
	if rec := e.postForm("/admin/users", url.Values{"username": {"x2"}, "password": {"secret1"}, "role": {"owner"}}, admin); rec.Code != http.StatusBadRequest {
		t.Errorf("bad role = %d", rec.Code)
	}

	tok, _ := e.reg.Create("staff2", model.UserRoleAdmin)
	if rec := e.postForm("/admin/users/staff2/toggle", nil, admin); rec.Code != http.StatusSeeOther {
		t.Fatalf("toggle = %d", rec.Code)
	}
	if rec := e.get("/", tok); rec.Code != http.StatusSeeOther {
		t.Errorf("disabled user home = %d, want redirect", rec.Code)
	}
}

func TestAdminQuestionImport(t *testing.T) {
	e := newTestEnv(t)
	admin := e.addUser(t, "root", model.UserRoleAdmin)

	upload := func(name, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := mw.WriteField(csrfFieldName, testCSRF); err != nil {
			t.Fatal(err)
		}
		fw, err := mw.CreateFormFile("questions_file", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, content); err != nil {
			t.Fatal(err)
		}
		if err := mw.Close(); err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodPost, "/admin/questions/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return e.do(req, admin)
	}

	yamlBank := "- content: Which band is 4-8 Hz?\n  option_a: delta\n  option_b: theta\n  option_c: alpha\n  option_d: beta\n  correct: B\n"
	if rec := upload("bank.yaml", yamlBank); rec.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rec.Code, rec.Body.String())
	}
	if n, _ := e.db.QuestionCount(); n != 1 {
		t.Fatalf("question count = %d", n)
	}
	// Same content again is skipped.
	if rec := upload("copy.yaml", yamlBank); rec.Code != http.StatusOK {
		t.Fatalf("re-import = %d", rec.Code)
	}
	if n, _ := e.db.QuestionCount(); n != 1 {
		t.Errorf("question count after re-import = %d", n)
	}
	if rec := upload("bad.json", `[{"content":"x"}]`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad bank = %d", rec.Code)
	}
}

func TestAdminExport(t *testing.T) {
	e := newTestEnv(t)
	admin := e.addUser(t, "root", model.UserRoleAdmin)
	alice := e.addUser(t, "alice", model.UserRoleStudent)
	if rec := e.postJSON("/api/quiz/finish", `{}`, alice); rec.Code != http.StatusOK {
		t.Fatal(rec.Code)
	}

	rec := e.get("/admin/reports/export", admin)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("export = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	body, _ := io.ReadAll(rec.Body)
	if !bytes.HasPrefix(body, []byte("PK")) {
		t.Error("export is not a zip archive")
	}
}

func TestReregisteredUsernameSeesNoOldReports(t *testing.T) {
	e := newTestEnv(t)
	admin := e.addUser(t, "root", model.UserRoleAdmin)
	alice := e.addUser(t, "alice", model.UserRoleStudent)
	if rec := e.postJSON("/api/quiz/finish", `{}`, alice); rec.Code != http.StatusOK {
		t.Fatalf("finish = %d", rec.Code)
	}
	if rec := e.postForm("/admin/users/alice/delete", nil, admin); rec.Code != http.StatusSeeOther {
		t.Fatalf("delete = %d", rec.Code)
	}

	if rec := e.postForm("/register", url.Values{"username": {"alice"}, "password": {"secret2"}}, ""); rec.Code != http.StatusSeeOther {
		t.Fatalf("re-register = %d", rec.Code)
	}
	rec := e.postForm("/login", url.Values{"username": {"alice"}, "password": {"secret2"}}, "")
	tok := sessionCookie(rec)
	if tok == "" {
		t.Fatalf("login = %d, no session", rec.Code)
	}

	rec = e.get("/reports", tok)
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "report_1.md") {
		t.Errorf("/reports = %d, lists old report: %v", rec.Code, strings.Contains(rec.Body.String(), "report_1.md"))
	}
	if rec := e.get("/reports/alice/report_1.md", tok); rec.Code != http.StatusNotFound {
		t.Errorf("old report = %d, want 404", rec.Code)
	}
	if rec := e.get("/reports/.deleted", admin); rec.Code != http.StatusNotFound && rec.Code != http.StatusForbidden {
		t.Errorf("archive listing = %d", rec.Code)
	}
	if rec := e.get("/api/quiz/state", tok); !strings.Contains(rec.Body.String(), `"not_started"`) {
		t.Errorf("state = %s", rec.Body.String())
	}
}

// brokenPipe fails every body write and records WriteHeader calls.
type brokenPipe struct {
	header http.Header
	codes  []int
}

func (b *brokenPipe) Header() http.Header { return b.header }

func (b *brokenPipe) WriteHeader(code int) { b.codes = append(b.codes, code) }

func (b *brokenPipe) Write([]byte) (int, error) {
	if len(b.codes) == 0 {
		b.codes = append(b.codes, http.StatusOK)
	}
	return 0, errors.New("connection reset")
}

func TestStreamWriteFailureSendsHeadersOnce(t *testing.T) {
	e := newTestEnv(t)
	tok := e.addUser(t, "alice", model.UserRoleStudent)
	if err := os.WriteFile(filepath.Join(e.dataDir, "videos", "clip.mp4"), bytes.Repeat([]byte("x"), 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := e.db.InsertVideo(model.Video{Title: "Clip", Filename: "clip.mp4", UploadedBy: "root"})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/videos/"+jsonInt(id)+"/stream", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tok})
	w := &brokenPipe{header: http.Header{}}
	e.router.ServeHTTP(w, req)

	if len(w.codes) != 1 || w.codes[0] != http.StatusPartialContent {
		t.Errorf("WriteHeader calls = %v, want [206]", w.codes)
	}
}
