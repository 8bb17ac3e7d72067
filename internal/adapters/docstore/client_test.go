package docstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"winemap/internal/adapters/docstore"
	"winemap/internal/domain"
)

func newClient(t *testing.T, base string) *docstore.Client {
	t.Helper()
	cl, err := docstore.New(base, "test-key", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func TestSaveReport_PayloadShape(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/posts/documents" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(201)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "doc1"})
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	before := time.Now().UnixMilli()
	err := cl.SaveReport(context.Background(), domain.ReportDraft{
		UserID: "u1", UserName: "Ann", WineryName: "Red Hill",
		Content: "Nice", ImageURL: "http://x/1.jpg", Rating: 4,
		Location: &domain.Location{Lat: 32.08, Lng: 34.78, Name: "Tel Aviv"},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if got["userId"] != "u1" || got["wineryName"] != "Red Hill" || got["rating"] != 4.0 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	// location flattens into three scalar fields
	if got["locationName"] != "Tel Aviv" || got["locationLat"] != 32.08 || got["locationLng"] != 34.78 {
		t.Fatalf("location not flattened: %+v", got)
	}
	createdAt, ok := got["createdAt"].(float64)
	if !ok || int64(createdAt) < before || int64(createdAt) > time.Now().UnixMilli() {
		t.Fatalf("createdAt not stamped sensibly: %v", got["createdAt"])
	}
}

func TestSaveReport_NoLocationOmitsFields(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(201)
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	if err := cl.SaveReport(context.Background(), domain.ReportDraft{UserID: "u1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for _, k := range []string{"locationName", "locationLat", "locationLng"} {
		if _, present := got[k]; present {
			t.Fatalf("field %s should be omitted when location is absent", k)
		}
	}
}

func TestUpdateReport_PartialPayload(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/collections/posts/documents/doc1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(200)
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	rating := 5
	err := cl.UpdateReport(context.Background(), "doc1", domain.ReportPatch{Rating: &rating})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(got) != 1 || got["rating"] != 5.0 {
		t.Fatalf("expected only rating in payload, got %+v", got)
	}
}

func TestUpdateReport_EmptyPatchMakesNoCall(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	if err := cl.UpdateReport(context.Background(), "doc1", domain.ReportPatch{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("empty patch must not hit the remote store, got %d calls", hits)
	}
}

func TestDeleteReport_AbsentDocumentIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl := newClient(t, ts.URL)
	if err := cl.DeleteReport(context.Background(), "ghost"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestGetAllReports_SortedAndLenient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documents": []map[string]any{
				{"id": "old", "data": map[string]any{
					"userId": "u1", "wineryName": "Old Cellar", "rating": 3, "createdAt": 100,
				}},
				{"id": "drifted", "data": map[string]any{
					// rating as a string fails the strict decode
					"userId": "u2", "wineryName": "Drift Estate", "rating": "not-a-number", "createdAt": 300,
				}},
				{"id": "new", "data": map[string]any{
					"userId": "u1", "wineryName": "New Barrel", "rating": 4, "createdAt": 200,
					"locationName": "Tel Aviv", "locationLat": 32.08, "locationLng": 34.78,
				}},
			},
		})
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	rs, err := cl.GetAllReports(context.Background())
	if err != nil {
		t.Fatalf("getAll: %v", err)
	}
	if len(rs) != 3 {
		t.Fatalf("one drifted document must not fail the fetch; got %d reports", len(rs))
	}
	for i, want := range []string{"drifted", "new", "old"} {
		if rs[i].ID != want {
			t.Fatalf("order mismatch at %d: got %s want %s", i, rs[i].ID, want)
		}
	}
	if rs[0].Rating != 0 {
		t.Fatalf("malformed rating should default to 0, got %d", rs[0].Rating)
	}
	if rs[0].Location != nil {
		t.Fatalf("missing location fields should decode to absent, got %+v", rs[0].Location)
	}
	if rs[1].Location == nil || rs[1].Location.Name != "Tel Aviv" {
		t.Fatalf("location should round-trip as a unit: %+v", rs[1].Location)
	}
}

func TestGetReportsForUser_QueriesByUser(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("userId"); got != "u1" {
			t.Errorf("expected userId=u1 query, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"documents": []map[string]any{}})
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	rs, err := cl.GetReportsForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("getReportsForUser: %v", err)
	}
	if len(rs) != 0 {
		t.Fatalf("expected no reports, got %d", len(rs))
	}
}

func TestIdentifiersAreEscapedInURLs(t *testing.T) {
	var gotUser, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gotUser = r.URL.Query().Get("userId")
			_ = json.NewEncoder(w).Encode(map[string]any{"documents": []map[string]any{}})
		case http.MethodDelete:
			gotPath = r.URL.EscapedPath()
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)

	// a hostile user id must survive the query string intact
	if _, err := cl.GetReportsForUser(context.Background(), "u 1&userId=other"); err != nil {
		t.Fatalf("getReportsForUser: %v", err)
	}
	if gotUser != "u 1&userId=other" {
		t.Fatalf("userId mangled in query: %q", gotUser)
	}

	// a document id with a slash must stay one path segment
	if err := cl.DeleteReport(context.Background(), "doc/../other"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotPath != "/collections/posts/documents/doc%2F..%2Fother" {
		t.Fatalf("id mangled in path: %q", gotPath)
	}
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid email or password"})
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	err := cl.SignIn(context.Background(), "a@b.c", "wrong")
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if ae.Op != "signin" {
		t.Fatalf("unexpected op: %s", ae.Op)
	}
	if _, ok := cl.CurrentUserUID(); ok {
		t.Fatal("failed signin must not establish a session")
	}
}

func TestSignIn_EstablishesSession(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"uid": "uid-1", "email": "a@b.c", "token": "tok"})
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	if err := cl.SignIn(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("signin: %v", err)
	}
	if uid, ok := cl.CurrentUserUID(); !ok || uid != "uid-1" {
		t.Fatalf("unexpected uid: %q %v", uid, ok)
	}
	if email, ok := cl.CurrentUserEmail(); !ok || email != "a@b.c" {
		t.Fatalf("unexpected email: %q %v", email, ok)
	}

	if err := cl.SignOut(context.Background()); err != nil {
		t.Fatalf("signout: %v", err)
	}
	if _, ok := cl.CurrentUserUID(); ok {
		t.Fatal("session should be gone after signout")
	}
}

func TestUpdatePassword_RequiresSession(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	err := cl.UpdatePassword(context.Background(), "newpw")
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("unauthenticated password update must not hit the provider")
	}
}

func TestGetAllReports_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"documents": []map[string]any{}})
		}
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := cl.GetAllReports(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}
