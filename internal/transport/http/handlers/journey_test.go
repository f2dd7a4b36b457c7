package handlers_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"letterdesk/internal/app/server"
	"letterdesk/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func testConfig(t *testing.T, dbURL string) config.Config {
	t.Helper()
	templateDir := t.TempDir()
	writeDocxTemplate(t, filepath.Join(templateDir, "experience.docx"))

	return config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		Environment:        "test",
		FrontendDir:        "frontend/dist",
		TemplateDir:        templateDir,
		GeneratedDir:       t.TempDir(),
		MigrationsDir:      "../../../../migrations",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		EmailFrom:          "no-reply@test.local",
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
		MetricsEnabled:     true,
	}
}

// writeDocxTemplate creates a minimal but valid DOCX with placeholder
// fields the generator is expected to fill.
func writeDocxTemplate(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   `<w:document><w:body><w:p><w:t>This confirms {{EMPLOYEE_NAME}} ({{EMPLOYEE_ID}}) was employed as {{POSITION}}.</w:t></w:p></w:body></w:document>`,
	}
	for name, content := range entries {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
}

func TestLetterRequestJourney(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(t, dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	suffix := time.Now().UnixNano()
	employeeEmail := fmt.Sprintf("journey-%d@example.com", suffix)
	employeePassword := "Journey123!"
	postJSON(t, client, ts.URL+"/api/v1/employees", adminToken, map[string]any{
		"employeeId": fmt.Sprintf("EMP%d", suffix),
		"name":       "Journey Tester",
		"email":      employeeEmail,
		"title":      "Engineer",
		"department": "Platform",
		"password":   employeePassword,
	})

	userToken := login(t, client, ts.URL, employeeEmail, employeePassword)

	resp := postJSON(t, client, ts.URL+"/api/v1/letter-requests", userToken, map[string]any{
		"letterType":       "experience",
		"details":          map[string]string{},
		"employeeComments": "needed for a bank application",
	})
	var created map[string]any
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("failed to decode created request: %v", err)
	}
	requestID, _ := created["id"].(string)
	if requestID == "" {
		t.Fatal("expected request id")
	}
	if created["status"] != "pending" {
		t.Fatalf("expected pending, got %v", created["status"])
	}

	// Details that fail field validation are rejected up front.
	postJSONStatus(t, client, ts.URL+"/api/v1/letter-requests", userToken, map[string]any{
		"letterType": "visa_letter",
		"details":    map[string]string{"destination": "Japan"},
	}, http.StatusBadRequest)

	resp = postJSON(t, client, ts.URL+"/api/v1/letter-requests/"+requestID+"/generate", adminToken, nil)
	var generated map[string]any
	if err := json.Unmarshal(resp.Data, &generated); err != nil {
		t.Fatalf("failed to decode generated request: %v", err)
	}
	if generated["status"] != "letter_generated" {
		t.Fatalf("expected letter_generated, got %v", generated["status"])
	}
	if name, _ := generated["generatedLetterFilename"].(string); !strings.HasPrefix(name, "experience_EMP") {
		t.Fatalf("unexpected generated filename %q", name)
	}

	download := rawGet(t, client, ts.URL+"/api/v1/letter-requests/"+requestID+"/download", userToken, http.StatusOK)
	if len(download) == 0 || !bytes.HasPrefix(download, []byte("PK")) {
		t.Fatal("expected a DOCX download")
	}

	// Without an active provider session the approve-and-send variant is
	// rejected outright and the status does not move.
	patchJSONStatus(t, client, ts.URL+"/api/v1/letter-requests/"+requestID+"/decision", adminToken, map[string]any{
		"decision":   "approved",
		"adminEmail": cfg.SeedAdminEmail,
	}, http.StatusBadRequest)

	resp = patchJSON(t, client, ts.URL+"/api/v1/letter-requests/"+requestID+"/decision", adminToken, map[string]any{
		"decision":   "approved",
		"adminNotes": "looks fine",
	})
	var decided map[string]any
	if err := json.Unmarshal(resp.Data, &decided); err != nil {
		t.Fatalf("failed to decode decided request: %v", err)
	}
	if decided["status"] != "approved" {
		t.Fatalf("expected approved, got %v", decided["status"])
	}

	// Withdraw is only legal while pending.
	postJSONStatus(t, client, ts.URL+"/api/v1/letter-requests/"+requestID+"/withdraw", userToken, nil, http.StatusConflict)

	resp = postJSON(t, client, ts.URL+"/api/v1/letter-requests/"+requestID+"/retake", userToken, nil)
	var retaken map[string]any
	if err := json.Unmarshal(resp.Data, &retaken); err != nil {
		t.Fatalf("failed to decode retaken request: %v", err)
	}
	if retaken["status"] != "pending" {
		t.Fatalf("expected pending after retake, got %v", retaken["status"])
	}
	if _, ok := retaken["generatedLetterFilename"]; ok {
		t.Fatal("expected generated letter fields to be cleared by retake")
	}

	resp = postJSON(t, client, ts.URL+"/api/v1/letter-requests/"+requestID+"/withdraw", userToken, nil)
	var withdrawn map[string]any
	if err := json.Unmarshal(resp.Data, &withdrawn); err != nil {
		t.Fatalf("failed to decode withdrawn request: %v", err)
	}
	if withdrawn["status"] != "withdrawn" {
		t.Fatalf("expected withdrawn, got %v", withdrawn["status"])
	}
}

func TestEmployeeCannotSeeOthersRequests(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(t, dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	suffix := time.Now().UnixNano()
	var tokens [2]string
	var requestIDs [2]string
	for i := 0; i < 2; i++ {
		email := fmt.Sprintf("isolation-%d-%d@example.com", i, suffix)
		postJSON(t, client, ts.URL+"/api/v1/employees", adminToken, map[string]any{
			"employeeId": fmt.Sprintf("ISO%d%d", i, suffix),
			"name":       fmt.Sprintf("Isolation %d", i),
			"email":      email,
			"password":   "Isolation123!",
		})
		tokens[i] = login(t, client, ts.URL, email, "Isolation123!")

		resp := postJSON(t, client, ts.URL+"/api/v1/letter-requests", tokens[i], map[string]any{
			"letterType": "employment",
			"details":    map[string]string{},
		})
		var created map[string]any
		if err := json.Unmarshal(resp.Data, &created); err != nil {
			t.Fatalf("failed to decode created request: %v", err)
		}
		requestIDs[i], _ = created["id"].(string)
	}

	getJSONStatus(t, client, ts.URL+"/api/v1/letter-requests/"+requestIDs[1], tokens[0], http.StatusForbidden)
	getJSONStatus(t, client, ts.URL+"/api/v1/letter-requests/"+requestIDs[1], adminToken, http.StatusOK)

	resp := getJSON(t, client, ts.URL+"/api/v1/letter-requests/", tokens[0])
	var list []map[string]any
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	for _, item := range list {
		if item["id"] == requestIDs[1] {
			t.Fatal("employee can see another employee's request in the list")
		}
	}
}

func TestRoleChangesRequireSuperAdmin(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(t, dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	superToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	suffix := time.Now().UnixNano()
	var ids [2]string
	var emails [2]string
	for i := 0; i < 2; i++ {
		emails[i] = fmt.Sprintf("roles-%d-%d@example.com", i, suffix)
		resp := postJSON(t, client, ts.URL+"/api/v1/employees", superToken, map[string]any{
			"employeeId": fmt.Sprintf("ROL%d%d", i, suffix),
			"name":       fmt.Sprintf("Role Tester %d", i),
			"email":      emails[i],
			"password":   "RoleTest123!",
		})
		var created map[string]any
		if err := json.Unmarshal(resp.Data, &created); err != nil {
			t.Fatalf("failed to decode created employee: %v", err)
		}
		ids[i], _ = created["id"].(string)
	}

	// The bootstrap administrator may promote.
	patchJSON(t, client, ts.URL+"/api/v1/employees/"+ids[0]+"/role", superToken, map[string]any{"role": "admin"})

	// A freshly promoted admin may not change anyone's role.
	promotedToken := login(t, client, ts.URL, emails[0], "RoleTest123!")
	resp := patchJSONStatus(t, client, ts.URL+"/api/v1/employees/"+ids[1]+"/role", promotedToken, map[string]any{"role": "admin"}, http.StatusForbidden)
	if resp.Error == nil || resp.Error.Code != "super_admin_required" {
		t.Fatalf("expected super_admin_required, got %+v", resp.Error)
	}

	resp = getJSON(t, client, ts.URL+"/api/v1/employees/"+ids[1], superToken)
	var target map[string]any
	if err := json.Unmarshal(resp.Data, &target); err != nil {
		t.Fatalf("failed to decode employee: %v", err)
	}
	if target["role"] != "user" {
		t.Fatalf("expected role user, got %v", target["role"])
	}

	// The bootstrap administrator cannot be demoted, even by themselves.
	resp = getJSON(t, client, ts.URL+"/api/v1/employees/", superToken)
	var all []map[string]any
	if err := json.Unmarshal(resp.Data, &all); err != nil {
		t.Fatalf("failed to decode employees: %v", err)
	}
	var superID string
	for _, emp := range all {
		if emp["email"] == cfg.SeedAdminEmail {
			superID, _ = emp["id"].(string)
		}
	}
	if superID == "" {
		t.Fatal("seed admin not found")
	}
	resp = patchJSONStatus(t, client, ts.URL+"/api/v1/employees/"+superID+"/role", superToken, map[string]any{"role": "user"}, http.StatusForbidden)
	if resp.Error == nil || resp.Error.Code != "super_admin_protected" {
		t.Fatalf("expected super_admin_protected, got %+v", resp.Error)
	}
}

func TestApprovalSurvivesSigningFailure(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	// Provider stub: authentication succeeds, envelope creation rejects the
	// token. That models a session revoked between approval and sending.
	var providerURL string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/oauth/token":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"stub-token","token_type":"Bearer","expires_in":28800}`)
		case r.Method == http.MethodGet && r.URL.Path == "/oauth/userinfo":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"sub":"user-1","accounts":[{"account_id":"acct-1","is_default":true,"base_uri":%q}]}`, providerURL)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/envelopes"):
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer provider.Close()
	providerURL = provider.URL

	cfg := testConfig(t, dbURL)
	cfg.ESign = config.ESignConfig{
		BaseURL:        provider.URL,
		OAuthBaseURL:   provider.URL,
		IntegrationKey: "stub-key",
		Secret:         "stub-secret",
		RedirectURI:    "http://localhost/esign/callback",
	}
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	postJSON(t, client, ts.URL+"/api/v1/esign/auth", adminToken, map[string]any{"code": "stub-code"})

	suffix := time.Now().UnixNano()
	employeeEmail := fmt.Sprintf("signing-%d@example.com", suffix)
	postJSON(t, client, ts.URL+"/api/v1/employees", adminToken, map[string]any{
		"employeeId": fmt.Sprintf("SIG%d", suffix),
		"name":       "Signing Tester",
		"email":      employeeEmail,
		"password":   "Signing123!",
	})
	userToken := login(t, client, ts.URL, employeeEmail, "Signing123!")

	resp := postJSON(t, client, ts.URL+"/api/v1/letter-requests", userToken, map[string]any{
		"letterType": "experience",
		"details":    map[string]string{},
	})
	var created map[string]any
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("failed to decode created request: %v", err)
	}
	requestID, _ := created["id"].(string)

	postJSON(t, client, ts.URL+"/api/v1/letter-requests/"+requestID+"/generate", adminToken, nil)

	// The approval is written before the provider call, so a send failure
	// reports the already-approved record instead of rolling it back.
	resp = patchJSONStatus(t, client, ts.URL+"/api/v1/letter-requests/"+requestID+"/decision", adminToken, map[string]any{
		"decision":   "approved",
		"adminEmail": cfg.SeedAdminEmail,
	}, http.StatusBadGateway)
	if resp.Error == nil || resp.Error.Code != "esign_send_failed" {
		t.Fatalf("expected esign_send_failed, got %+v", resp.Error)
	}
	var record map[string]any
	if err := json.Unmarshal(resp.Error.Details, &record); err != nil {
		t.Fatalf("failed to decode error details: %v", err)
	}
	if record["id"] != requestID || record["status"] != "approved" {
		t.Fatalf("expected the approved record in details, got %v", record)
	}

	resp = getJSON(t, client, ts.URL+"/api/v1/letter-requests/"+requestID, adminToken)
	var fetched map[string]any
	if err := json.Unmarshal(resp.Data, &fetched); err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}
	if fetched["status"] != "approved" {
		t.Fatalf("expected approved after send failure, got %v", fetched["status"])
	}
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("expected token")
	}
	return token
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any, want int) envelope {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if want > 0 && resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(raw))
	}
	if want == 0 && resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodPost, url, token, body, 0)
}

func postJSONStatus(t *testing.T, client *http.Client, url, token string, body any, want int) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodPost, url, token, body, want)
}

func patchJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodPatch, url, token, body, 0)
}

func patchJSONStatus(t *testing.T, client *http.Client, url, token string, body any, want int) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodPatch, url, token, body, want)
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodGet, url, token, nil, 0)
}

func getJSONStatus(t *testing.T, client *http.Client, url, token string, want int) envelope {
	t.Helper()
	return doJSON(t, client, http.MethodGet, url, token, nil, want)
}

func rawGet(t *testing.T, client *http.Client, url, token string, want int) []byte {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
	return raw
}
