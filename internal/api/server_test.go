package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reportview/internal/assistant"
	"reportview/internal/logging"
	"reportview/internal/render"
	"reportview/internal/report"
	"reportview/internal/store"
)

func testLogger() *logging.Logger {
	return logging.NewLogger("api", logging.ERROR, io.Discard)
}

type fakeGenerator struct {
	calls atomic.Int32
	reply string
	err   error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	return f.reply, f.err
}

type testEnv struct {
	store        *store.MemoryStore
	server       *Server
	ts           *httptest.Server
	gen          *fakeGenerator
	factoryCalls atomic.Int32
	factoryKey   atomic.Value
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, ServerConfig{ChatTimeout: time.Second})
}

func newTestEnvWith(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		store: store.NewMemoryStore(),
		gen:   &fakeGenerator{reply: "Có **2** người đạt."},
	}
	loader := report.NewLoader(env.store, env.store, testLogger())
	factory := func(key string) (assistant.Generator, error) {
		env.factoryCalls.Add(1)
		env.factoryKey.Store(key)
		return env.gen, nil
	}

	srv, err := NewServer(loader, factory, cfg, testLogger())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	env.server = srv
	env.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(env.ts.Close)
	return env
}

func (e *testEnv) save(t *testing.T, rec *report.Record) {
	t.Helper()
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = time.Now().Add(24 * time.Hour)
	}
	if err := e.store.SaveReport(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(e.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

var viewIDPattern = regexp.MustCompile(`data-view="([0-9a-f-]{36})"`)

func viewID(t *testing.T, body string) string {
	t.Helper()
	m := viewIDPattern.FindStringSubmatch(body)
	if m == nil {
		t.Fatal("page has no view id")
	}
	return m[1]
}

func complianceRecord() *report.Record {
	return &report.Record{
		ID:        "r1",
		Title:     "Báo cáo tuân thủ 2026",
		Type:      report.TypeCompliance,
		Headers:   `{"name":"Họ tên","status":"Trạng thái","totalCredits":"Tổng tiết"}`,
		Data:      `[{"id":"u1","name":"An","status":"Đã đạt","totalCredits":24},{"id":"u2","name":"Bình","status":"Chưa đạt","totalCredits":6.5}]`,
		CreatedBy: "admin",
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Token:     "tok",
	}
}

func TestReportPageFlat(t *testing.T) {
	env := newTestEnv(t)
	env.save(t, complianceRecord())

	resp, body := env.get(t, "/r/r1?token=tok")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if got := resp.Header.Get("Referrer-Policy"); got != "no-referrer" {
		t.Errorf("Referrer-Policy = %q", got)
	}

	for _, want := range []string{
		"<h1>Báo cáo tuân thủ 2026</h1>",
		"Người tạo: admin | Ngày tạo: 01/03/2026 15:00:00",
		"Hết hạn vào: ",
		`<span class="badge badge-ok">Đã đạt</span>`,
		`<span class="badge badge-warn">Chưa đạt</span>`,
		"<th>Họ tên</th><th>Trạng thái</th><th>Tổng tiết</th>",
		"6.5",
		`data-strip-token="true"`,
		assistant.Greeting,
		"Hệ thống Quản lý Đào tạo Liên tục",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Index(body, ">An<") > strings.Index(body, ">Bình<") {
		t.Error("rows reordered")
	}
	if env.server.views.Len() != 1 {
		t.Errorf("views = %d, want 1", env.server.views.Len())
	}
}

func TestReportPageDatesInVietnamTime(t *testing.T) {
	env := newTestEnv(t)
	rec := complianceRecord()
	rec.Token = ""
	rec.CreatedAt = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	rec.ExpiresAt = time.Now().Add(time.Hour).Truncate(time.Second)
	env.save(t, rec)

	_, body := env.get(t, "/r/r1")
	if !strings.Contains(body, "Ngày tạo: 02/03/2026 03:00:00") {
		t.Error("creation date not shown in Vietnam time")
	}
	wantExpiry := "Hết hạn vào: " + rec.ExpiresAt.In(vietnamTime).Format(dateLayout)
	if !strings.Contains(body, wantExpiry) {
		t.Errorf("page missing %q", wantExpiry)
	}
}

func TestReportPageConfiguredLocation(t *testing.T) {
	env := newTestEnvWith(t, ServerConfig{Location: time.UTC})
	rec := complianceRecord()
	rec.Token = ""
	rec.CreatedAt = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	env.save(t, rec)

	_, body := env.get(t, "/r/r1")
	if !strings.Contains(body, "Ngày tạo: 01/03/2026 20:00:00") {
		t.Error("creation date not shown in the configured zone")
	}
}

func TestReportReloadsKeepViewsBounded(t *testing.T) {
	env := newTestEnvWith(t, ServerConfig{MaxViews: 5})
	rec := complianceRecord()
	rec.Token = ""
	env.save(t, rec)

	var last string
	for i := 0; i < 50; i++ {
		resp, body := env.get(t, "/r/r1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("load %d: status = %d", i, resp.StatusCode)
		}
		last = viewID(t, body)
	}
	if n := env.server.views.Len(); n != 5 {
		t.Errorf("views = %d after 50 loads, want 5", n)
	}
	if resp, _ := env.get(t, "/api/views/"+last+"/rows/0"); resp.StatusCode == http.StatusNotFound {
		t.Error("latest view evicted")
	}
}

func TestReportPageAssistantNotice(t *testing.T) {
	env := newTestEnv(t)
	rec := complianceRecord()
	rec.Token = ""
	env.save(t, rec)

	_, body := env.get(t, "/r/r1")
	if !strings.Contains(body, assistantOffNotice) {
		t.Error("unavailable notice missing without a credential")
	}

	env.store.AddAPIKey(context.Background(), "AIza-test")
	_, body = env.get(t, "/r/r1")
	if strings.Contains(body, assistantOffNotice) {
		t.Error("unavailable notice shown with a credential")
	}
}

func TestReportPageWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	rec := complianceRecord()
	rec.Token = ""
	env.save(t, rec)

	resp, body := env.get(t, "/r/r1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `data-strip-token="false"`) {
		t.Error("token strip requested without a token")
	}
}

type failingRepo struct{}

func (failingRepo) GetReport(context.Context, string) (*report.Record, error) {
	return nil, errors.New("connection refused")
}

func TestReportPageErrors(t *testing.T) {
	env := newTestEnv(t)
	env.save(t, complianceRecord())

	expired := complianceRecord()
	expired.ID = "old"
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	env.save(t, expired)

	broken := complianceRecord()
	broken.ID = "broken"
	broken.Data = `{"not":"an array"}`
	env.save(t, broken)

	tests := []struct {
		name string
		path string
		want *report.AccessError
	}{
		{"missing id", "/r/", report.ErrMissingID},
		{"unknown", "/r/nope", report.ErrNotFound},
		{"wrong token", "/r/r1?token=bad", report.ErrAccessDenied},
		{"no token", "/r/r1", report.ErrAccessDenied},
		{"expired", "/r/old?token=tok", report.ErrExpired},
		{"wrong token beats expiry", "/r/old?token=bad", report.ErrAccessDenied},
		{"malformed", "/r/broken?token=tok", report.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.get(t, tt.path)
			if resp.StatusCode != tt.want.Status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want.Status)
			}
			if !strings.Contains(body, tt.want.Message) {
				t.Errorf("body missing %q", tt.want.Message)
			}
			if strings.Contains(body, "report-table") {
				t.Error("error page rendered report content")
			}
		})
	}
	if env.server.views.Len() != 0 {
		t.Errorf("failed loads registered %d views", env.server.views.Len())
	}
}

func TestReportPageStoreFailure(t *testing.T) {
	srv, err := NewServer(report.NewLoader(failingRepo{}, nil, testLogger()), nil, ServerConfig{}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/r/any", nil))

	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), report.ErrUnavailable.Message) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestReportPageGrouped(t *testing.T) {
	env := newTestEnv(t)
	env.save(t, &report.Record{
		ID:      "dep",
		Title:   "Theo khoa",
		Type:    report.TypeDepartment,
		Headers: `{}`,
		Data: `[{"name":"An","department":"Nội","totalCredits":10},
			{"name":"Bình","department":"Dược","totalCredits":4},
			{"name":"Chi","department":"Nội","totalCredits":2.5},
			{"name":"Dũng","department":"","totalCredits":99}]`,
	})

	resp, body := env.get(t, "/r/dep")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	duoc := strings.Index(body, "Khoa/Phòng: Dược")
	noi := strings.Index(body, "Khoa/Phòng: Nội")
	if duoc < 0 || noi < 0 || duoc > noi {
		t.Errorf("group headers missing or unordered (Dược at %d, Nội at %d)", duoc, noi)
	}
	if !strings.Contains(body, `<td class="center">12.5</td>`) {
		t.Error("group total 12.5 missing")
	}
	if strings.Contains(body, "Dũng") {
		t.Error("row without department rendered")
	}
}

func TestReportPageGroupedNoData(t *testing.T) {
	env := newTestEnv(t)
	env.save(t, &report.Record{
		ID: "t", Type: report.TypeTitleDetail, Headers: `{}`,
		Data: `[{"name":"An","totalCredits":1}]`,
	})

	_, body := env.get(t, "/r/t")
	if !strings.Contains(body, render.NoDataMessage) {
		t.Error("no-data row missing")
	}
}

func TestReportPageDetailed(t *testing.T) {
	env := newTestEnv(t)
	env.save(t, &report.Record{
		ID: "d", Type: report.TypeDetail, Headers: `{}`,
		Data: `[{"name":"An","totalCredits":12,"certificates":[{"name":"ACLS","credits":8},{"name":"BLS","credits":4}]},
			{"name":"Bình","totalCredits":0,"certificates":[]}]`,
	})

	_, body := env.get(t, "/r/d")
	for _, want := range []string{`rowspan="2"`, `rowspan="1"`, "ACLS", "BLS", "Tên chứng chỉ", "1. An"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestReportPageEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.save(t, &report.Record{ID: "e", Type: report.TypeSummary, Headers: `{"name":"Họ tên"}`, Data: `[]`})

	_, body := env.get(t, "/r/e")
	if !strings.Contains(body, render.EmptyMessage) {
		t.Error("empty message missing")
	}
	if strings.Contains(body, "<table") {
		t.Error("table rendered for empty report")
	}
}

func drilldownRecord() *report.Record {
	return &report.Record{
		ID:      "sd",
		Title:   "Tổng hợp có chi tiết",
		Type:    report.TypeSummaryWithDetails,
		Headers: `{"name":"Họ tên","totalCredits":"Tổng tiết","actions":"Chi tiết"}`,
		Data: `[{"id":"u1","name":"An","totalCredits":12,"certificates":[{"name":"ACLS","credits":8},{"name":"BLS","credits":4}]},
			{"id":"u2","name":"Bình","totalCredits":0}]`,
	}
}

func TestDrilldown(t *testing.T) {
	env := newTestEnv(t)
	env.save(t, drilldownRecord())

	_, page := env.get(t, "/r/sd")
	if !strings.Contains(page, `data-detail="detail-0"`) || !strings.Contains(page, `<dialog id="detail-1"`) {
		t.Fatal("drilldown action or dialog missing")
	}
	id := viewID(t, page)

	resp, body := env.get(t, "/api/views/"+id+"/rows/0")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var detail render.Detail
	if err := json.Unmarshal([]byte(body), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.Name != "An" || detail.TotalCredits != 12 || len(detail.Certificates) != 2 || detail.Certificates[1].Name != "BLS" {
		t.Errorf("detail = %+v", detail)
	}

	_, body = env.get(t, "/api/views/"+id+"/rows/1")
	if !strings.Contains(body, `"certificates":[]`) {
		t.Errorf("row without certificates = %s", body)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/api/views/" + id + "/rows/2", http.StatusNotFound},
		{"/api/views/" + id + "/rows/-1", http.StatusNotFound},
		{"/api/views/" + id + "/rows/abc", http.StatusBadRequest},
		{"/api/views/unknown/rows/0", http.StatusNotFound},
	}
	for _, tt := range tests {
		if resp, _ := env.get(t, tt.path); resp.StatusCode != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.status)
		}
	}
}

func TestDrilldownNotOffered(t *testing.T) {
	env := newTestEnv(t)
	rec := complianceRecord()
	rec.Token = ""
	env.save(t, rec)

	_, page := env.get(t, "/r/r1")
	if strings.Contains(page, "<dialog") {
		t.Error("dialogs rendered for a report without drilldown")
	}
	resp, _ := env.get(t, "/api/views/"+viewID(t, page)+"/rows/0")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestReportJSON(t *testing.T) {
	env := newTestEnv(t)
	env.save(t, complianceRecord())
	env.store.AddAPIKey(context.Background(), "sekret-key")

	resp, body := env.get(t, "/api/reports/r1?token=tok")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var got reportResponse
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "r1" || got.Layout != "flat" || !got.Assistant || len(got.Rows) != 2 {
		t.Errorf("response = %+v", got)
	}
	if len(got.Columns) != 3 || got.Columns[0].Key != "name" || got.Columns[2].Label != "Tổng tiết" {
		t.Errorf("columns = %+v", got.Columns)
	}
	if strings.Contains(body, `"tok"`) || strings.Contains(body, "sekret") {
		t.Error("response leaks token or credential")
	}

	resp, body = env.get(t, "/api/reports/r1?token=bad")
	if resp.StatusCode != http.StatusForbidden || !strings.Contains(body, `"error":"access_denied"`) {
		t.Errorf("denied: status = %d, body = %s", resp.StatusCode, body)
	}
	if resp, _ := env.get(t, "/api/reports/"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing id status = %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/health")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("health = %d %s", resp.StatusCode, body)
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/static/report.css", "/static/report.js"} {
		resp, body := env.get(t, path)
		if resp.StatusCode != http.StatusOK || body == "" {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
	_, css := env.get(t, "/static/report.css")
	if !strings.Contains(css, "@media print") || !strings.Contains(css, ".no-print") {
		t.Error("print rules missing")
	}
	_, js := env.get(t, "/static/report.js")
	if !strings.Contains(js, "pending = text") || !strings.Contains(js, "ended.hidden = opened") {
		t.Error("chat script does not reconnect on submit")
	}
}
