package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/gridedit/internal/config"
	"github.com/JonMunkholm/gridedit/internal/core"
	_ "github.com/JonMunkholm/gridedit/internal/schema"
	"github.com/JonMunkholm/gridedit/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

type testEnv struct {
	server   *Server
	store    *store.Memory
	accounts []string
}

func newTestEnv(t *testing.T, sec config.SecurityConfig) *testEnv {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	if _, err := store.Seed(ctx, mem, 3); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	records, err := mem.ListRecords(ctx, "account", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	reg := prometheus.NewRegistry()
	service := core.NewService(mem, core.ServiceOptions{
		MaxConcurrentSaves: 2,
		Registerer:         reg,
	})
	t.Cleanup(service.Close)

	srv := NewServer(service, Options{Security: sec, Gatherer: reg})
	return &testEnv{server: srv, store: mem, accounts: ids}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) openControl(t *testing.T, entity string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/controls", map[string]string{"entity": entity})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open control: status = %d, body = %s", rec.Code, rec.Body)
	}
	var info core.ControlInfo
	decode(t, rec, &info)
	return info.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestListEntities(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	rec := env.do(t, http.MethodGet, "/api/entities", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var defs []core.EntityDefinition
	decode(t, rec, &defs)
	if len(defs) != 2 || defs[0].Info.Name != "account" || defs[1].Info.Name != "opportunity" {
		t.Fatalf("entities = %+v", defs)
	}
	if len(defs[0].Columns) == 0 {
		t.Error("account has no columns")
	}
}

func TestGetEntity_Unknown(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	rec := env.do(t, http.MethodGet, "/api/entities/invoice", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp ErrorResponse
	decode(t, rec, &resp)
	if resp.Code != "ENT001" {
		t.Errorf("code = %s, want ENT001", resp.Code)
	}
}

func TestOpenControl_Errors(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "unknown entity", body: map[string]string{"entity": "invoice"}, status: http.StatusNotFound},
		{name: "missing entity", body: map[string]string{}, status: http.StatusBadRequest},
		{name: "unknown field", body: map[string]string{"table": "account"}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/controls", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestEditAndSave(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	id := env.openControl(t, "account")
	recordID := env.accounts[0]
	base := "/api/controls/" + id

	rec := env.do(t, http.MethodPost, base+"/cells", map[string]any{
		"recordId": recordID,
		"column":   "employees",
		"value":    "1,200",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cell status = %d, body = %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("HX-Trigger") != pendingChangedEvent {
		t.Error("accepted edit should trigger badge refresh")
	}
	var cell core.CellResult
	decode(t, rec, &cell)
	if !cell.Accepted || cell.Pending != 1 {
		t.Fatalf("cell = %+v, want accepted with 1 pending", cell)
	}

	rec = env.do(t, http.MethodGet, base+"/badge", nil)
	if !strings.Contains(rec.Body.String(), "1 unsaved record") {
		t.Errorf("badge = %s", rec.Body)
	}

	rec = env.do(t, http.MethodPost, base+"/save", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", rec.Code, rec.Body)
	}
	var saved saveResponse
	decode(t, rec, &saved)
	if saved.Updated != 1 || saved.Pending != 0 || !saved.Refreshed {
		t.Errorf("save = %+v", saved.SaveResult)
	}

	stored, _ := env.store.Get("account", recordID)
	if stored["Employees"] != int64(1200) {
		t.Errorf("stored Employees = %v, want 1200", stored["Employees"])
	}

	rec = env.do(t, http.MethodGet, base+"/badge", nil)
	if !strings.Contains(rec.Body.String(), "All changes saved") {
		t.Errorf("badge after save = %s", rec.Body)
	}
}

func TestCellChange_Warnings(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	id := env.openControl(t, "account")

	tests := []struct {
		name     string
		column   string
		value    any
		wantKind core.WarningKind
		wantCode string
	}{
		{name: "rejected", column: "Employees", value: "lots", wantKind: core.WarnRejected, wantCode: "NRM001"},
		{name: "read only", column: "Account Number", value: "A-1", wantKind: core.WarnUnsupportedColumn, wantCode: "NRM002"},
		{name: "lookup", column: "Parent Account", value: map[string]string{"entity": "account", "id": "x"}, wantKind: core.WarnUnsupportedColumn, wantCode: "NRM002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/controls/"+id+"/cells", map[string]any{
				"recordId": env.accounts[0],
				"column":   tt.column,
				"value":    tt.value,
			})
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			var cell core.CellResult
			decode(t, rec, &cell)
			if cell.Accepted {
				t.Fatal("edit should not be accepted")
			}
			if cell.Warning == nil || cell.Warning.Kind != tt.wantKind || cell.Warning.Code != tt.wantCode {
				t.Errorf("warning = %+v, want %s/%s", cell.Warning, tt.wantKind, tt.wantCode)
			}
		})
	}
}

func TestSave_RemoteFailure(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	id := env.openControl(t, "account")
	base := "/api/controls/" + id

	for _, recordID := range env.accounts[:2] {
		env.do(t, http.MethodPost, base+"/cells", map[string]any{
			"recordId": recordID, "column": "Name", "value": "Renamed",
		})
	}
	env.store.FailUpdates(env.accounts[1], errors.New("validation rule failed"))

	rec := env.do(t, http.MethodPost, base+"/save", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (%s)", rec.Code, rec.Body)
	}
	var resp saveResponse
	decode(t, rec, &resp)
	if resp.Error == nil || resp.Error.Code != "SAV001" {
		t.Errorf("error = %+v, want SAV001", resp.Error)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].RecordID != env.accounts[1] {
		t.Errorf("failures = %+v", resp.Failures)
	}
	if resp.Pending != 2 {
		t.Errorf("pending = %d, want 2 under batch policy", resp.Pending)
	}

	// Retry succeeds once the store accepts the record
	env.store.FailUpdates(env.accounts[1], nil)
	rec = env.do(t, http.MethodPost, base+"/save", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d (%s)", rec.Code, rec.Body)
	}
}

func TestDiscardAndClose(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	id := env.openControl(t, "account")
	base := "/api/controls/" + id

	env.do(t, http.MethodPost, base+"/cells", map[string]any{
		"recordId": env.accounts[0], "column": "Active", "value": true,
	})

	rec := env.do(t, http.MethodGet, base, nil)
	var state struct {
		Control core.ControlInfo     `json:"control"`
		Pending []core.PendingRecord `json:"pending"`
	}
	decode(t, rec, &state)
	if state.Control.Pending != 1 || len(state.Pending) != 1 {
		t.Fatalf("state = %+v", state)
	}

	rec = env.do(t, http.MethodDelete, base+"/records/"+env.accounts[0], nil)
	var discard struct {
		Discarded bool `json:"discarded"`
		Pending   int  `json:"pending"`
	}
	decode(t, rec, &discard)
	if !discard.Discarded || discard.Pending != 0 {
		t.Errorf("discard = %+v", discard)
	}

	rec = env.do(t, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after close = %d, want 404", rec.Code)
	}
}

func TestRows(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	id := env.openControl(t, "account")

	rec := env.do(t, http.MethodGet, "/api/controls/"+id+"/rows?limit=2&offset=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var page struct {
		Rows []core.Record `json:"rows"`
	}
	decode(t, rec, &page)
	if len(page.Rows) != 2 || page.Rows[0].ID != env.accounts[1] {
		t.Errorf("rows = %+v", page.Rows)
	}
}

func TestListControls(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	env.openControl(t, "account")
	env.openControl(t, "opportunity")

	rec := env.do(t, http.MethodGet, "/api/controls", nil)
	var infos []core.ControlInfo
	decode(t, rec, &infos)
	if len(infos) != 2 {
		t.Errorf("controls = %d, want 2", len(infos))
	}
}

func TestUnknownControl_HTMX(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	rec := env.do(t, http.MethodGet, "/api/controls/nope/badge", nil, "HX-Request", "true")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want html partial", ct)
	}
	if !strings.Contains(rec.Body.String(), "CTL001") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	id := env.openControl(t, "account")
	env.do(t, http.MethodPost, "/api/controls/"+id+"/cells", map[string]any{
		"recordId": env.accounts[0], "column": "Name", "value": "x",
	})

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if !strings.Contains(rec.Body.String(), `gridedit_cell_edits_total{outcome="accepted"} 1`) {
		t.Errorf("metrics missing cell edit counter:\n%s", rec.Body)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}})

	if rec := env.do(t, http.MethodGet, "/api/entities", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/entities", nil, "X-API-Key", "secret"); rec.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", rec.Code)
	}
}

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	id := env.openControl(t, "account")
	base := "/api/controls/" + id

	env.do(t, http.MethodPost, base+"/cells", map[string]any{
		"recordId": env.accounts[1], "column": "Name", "value": "Contoso",
	})
	if rec := env.do(t, http.MethodPost, base+"/save", nil, "User-Agent", "grid-test"); rec.Code != http.StatusOK {
		t.Fatalf("save status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, base, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/audit?control="+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}
	var list struct {
		Entries []core.AuditEntry `json:"entries"`
	}
	decode(t, rec, &list)

	want := []core.AuditAction{core.ActionControlClose, core.ActionSave, core.ActionControlOpen}
	if len(list.Entries) != len(want) {
		t.Fatalf("entries = %+v, want %d", list.Entries, len(want))
	}
	for i, action := range want {
		if list.Entries[i].Action != action {
			t.Errorf("entries[%d].Action = %s, want %s", i, list.Entries[i].Action, action)
		}
	}

	save := list.Entries[1]
	if save.Records != 1 || save.BatchID == "" || save.Entity != "account" {
		t.Errorf("save entry = %+v", save)
	}
	if save.UserAgent != "grid-test" || save.IPAddress != "192.0.2.1" {
		t.Errorf("save entry client = %q %q", save.IPAddress, save.UserAgent)
	}

	rec = env.do(t, http.MethodGet, "/api/audit/"+save.ID, nil)
	var got core.AuditEntry
	decode(t, rec, &got)
	if got.ID != save.ID {
		t.Errorf("get audit = %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/audit/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing audit status = %d, want 404", rec.Code)
	}
}

func TestSave_UndeclaredColumn(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	id := env.openControl(t, "account")
	base := "/api/controls/" + id

	rec := env.do(t, http.MethodPost, base+"/cells", map[string]any{
		"recordId": env.accounts[0], "column": "Legacy Notes", "value": "x",
	})
	var cell core.CellResult
	decode(t, rec, &cell)
	if !cell.Accepted || cell.Warning == nil || cell.Warning.Kind != core.WarnMetadataUnavailable {
		t.Fatalf("cell = %+v, want accepted with metadata warning", cell)
	}
	env.do(t, http.MethodPost, base+"/cells", map[string]any{
		"recordId": env.accounts[1], "column": "Name", "value": "Good",
	})

	rec = env.do(t, http.MethodPost, base+"/save", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", rec.Code, rec.Body)
	}
	var saved saveResponse
	decode(t, rec, &saved)
	if saved.Updated != 2 || saved.Pending != 0 {
		t.Errorf("save = %+v", saved.SaveResult)
	}

	first, _ := env.store.Get("account", env.accounts[0])
	second, _ := env.store.Get("account", env.accounts[1])
	if first["Legacy Notes"] != "x" || second["Name"] != "Good" {
		t.Errorf("stored = %v / %v", first["Legacy Notes"], second["Name"])
	}
}
