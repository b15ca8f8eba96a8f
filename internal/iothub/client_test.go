package iothub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/iot-portal/internal/twin"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("super-secret-key"))

func testConnString() string {
	return "HostName=portal-hub.azure-devices.net;SharedAccessKeyName=registryRead;SharedAccessKey=" + testKey
}

// fakeHub serves /devices/query with a fixed set of twins split into pages.
type fakeHub struct {
	mu       sync.Mutex
	twins    []twin.Twin
	requests []*http.Request
	queries  []string
	status   int
}

func (f *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.requests = append(f.requests, r.Clone(context.Background()))
	f.queries = append(f.queries, body.Query)

	if f.status != 0 {
		http.Error(w, `{"Message":"unauthorized"}`, f.status)
		return
	}

	if strings.HasPrefix(body.Query, "SELECT COUNT()") {
		fmt.Fprintf(w, `[{"totalNumber":%d}]`, len(f.twins))
		return
	}

	size := len(f.twins)
	if v := r.Header.Get(headerMaxItemCount); v != "" {
		fmt.Sscanf(v, "%d", &size) //nolint:errcheck // test server
	}
	start := 0
	if v := r.Header.Get(headerContinuation); v != "" {
		fmt.Sscanf(v, "offset-%d", &start) //nolint:errcheck // test server
	}
	end := start + size
	if end > len(f.twins) {
		end = len(f.twins)
	}
	if end < len(f.twins) {
		w.Header().Set(headerContinuation, fmt.Sprintf("offset-%d", end))
	}
	json.NewEncoder(w).Encode(f.twins[start:end]) //nolint:errcheck // test server
}

func newTestClient(t *testing.T, hub *fakeHub) *Client {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	c, err := New(testConnString(), Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func makeTwins(n int) []twin.Twin {
	out := make([]twin.Twin, n)
	for i := range out {
		out[i] = twin.Twin{DeviceID: fmt.Sprintf("dev-%03d", i), Version: int64(i + 1)}
	}
	return out
}

func TestGetAllDevices_FirstPage(t *testing.T) {
	hub := &fakeHub{twins: makeTwins(5)}
	c := newTestClient(t, hub)

	page, err := c.GetAllDevices(context.Background(), "", twin.FilterConcentrators, 2)
	if err != nil {
		t.Fatalf("GetAllDevices() error = %v", err)
	}

	if page.TotalItems != 5 {
		t.Errorf("TotalItems = %d, want 5", page.TotalItems)
	}
	if len(page.Items) != 2 || page.Items[0].DeviceID != "dev-000" {
		t.Errorf("Items = %+v, want first two twins", page.Items)
	}
	if page.NextPage != "offset-2" {
		t.Errorf("NextPage = %q, want %q", page.NextPage, "offset-2")
	}

	if len(hub.queries) != 2 {
		t.Fatalf("requests = %d, want 2 (count + page)", len(hub.queries))
	}
	wantCount := "SELECT COUNT() AS totalNumber FROM devices WHERE " + twin.FilterConcentrators
	if hub.queries[0] != wantCount {
		t.Errorf("count query = %q, want %q", hub.queries[0], wantCount)
	}
	wantPage := "SELECT * FROM devices WHERE " + twin.FilterConcentrators
	if hub.queries[1] != wantPage {
		t.Errorf("page query = %q, want %q", hub.queries[1], wantPage)
	}

	req := hub.requests[1]
	if got := req.URL.Query().Get("api-version"); got != DefaultAPIVersion {
		t.Errorf("api-version = %q, want %q", got, DefaultAPIVersion)
	}
	if got := req.Header.Get(headerMaxItemCount); got != "2" {
		t.Errorf("%s = %q, want %q", headerMaxItemCount, got, "2")
	}
	if got := req.Header.Get(headerContinuation); got != "" {
		t.Errorf("first page should not send a continuation token, got %q", got)
	}
	if auth := req.Header.Get("Authorization"); !strings.HasPrefix(auth, "SharedAccessSignature sr=portal-hub.azure-devices.net&sig=") {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestGetAllDevices_FollowsContinuation(t *testing.T) {
	hub := &fakeHub{twins: makeTwins(5)}
	c := newTestClient(t, hub)
	ctx := context.Background()

	var seen []string
	token := ""
	for i := 0; i < 10; i++ {
		page, err := c.GetAllDevices(ctx, token, "", 2)
		if err != nil {
			t.Fatalf("GetAllDevices() error = %v", err)
		}
		for _, tw := range page.Items {
			seen = append(seen, tw.DeviceID)
		}
		if page.NextPage == "" {
			break
		}
		token = page.NextPage
	}

	if len(seen) != 5 || seen[4] != "dev-004" {
		t.Errorf("seen = %v, want all 5 twins in order", seen)
	}
	if got := hub.queries[1]; got != "SELECT * FROM devices" {
		t.Errorf("unfiltered query = %q, want %q", got, "SELECT * FROM devices")
	}
}

func TestGetAllDevices_ErrorStatus(t *testing.T) {
	hub := &fakeHub{status: http.StatusUnauthorized}
	c := newTestClient(t, hub)

	_, err := c.GetAllDevices(context.Background(), "", "", 10)
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("GetAllDevices() error = %v, want %v", err, ErrRequestFailed)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestGetAllDevices_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json")) //nolint:errcheck // test server
	}))
	t.Cleanup(srv.Close)

	c, err := New(testConnString(), Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.GetAllDevices(context.Background(), "", "", 10); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("GetAllDevices() error = %v, want %v", err, ErrInvalidResponse)
	}
}

func TestParseConnectionString(t *testing.T) {
	cs, err := ParseConnectionString(testConnString())
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}
	if cs.HostName != "portal-hub.azure-devices.net" || cs.KeyName != "registryRead" {
		t.Errorf("parsed = %+v", cs)
	}
	if string(cs.Key) != "super-secret-key" {
		t.Errorf("Key = %q, want decoded key", cs.Key)
	}

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing key", "HostName=h;SharedAccessKeyName=n"},
		{"missing host", "SharedAccessKeyName=n;SharedAccessKey=" + testKey},
		{"bad base64", "HostName=h;SharedAccessKeyName=n;SharedAccessKey=!!!"},
		{"malformed segment", "HostName"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConnectionString(tt.input); !errors.Is(err, ErrInvalidConnectionString) {
				t.Errorf("ParseConnectionString(%q) error = %v, want %v", tt.input, err, ErrInvalidConnectionString)
			}
		})
	}
}

func TestTokenSigner_CachesUntilNearExpiry(t *testing.T) {
	cs, err := ParseConnectionString(testConnString())
	if err != nil {
		t.Fatalf("ParseConnectionString() error = %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	s := newTokenSigner(cs, time.Hour)
	s.now = func() time.Time { return now }

	first := s.Token()
	if !strings.Contains(first, "se=1700003600") {
		t.Errorf("token = %q, want expiry one hour ahead", first)
	}
	if !strings.HasSuffix(first, "&skn=registryRead") {
		t.Errorf("token = %q, want policy name suffix", first)
	}

	now = now.Add(30 * time.Minute)
	if got := s.Token(); got != first {
		t.Error("token should be reused while far from expiry")
	}

	now = now.Add(26 * time.Minute)
	if got := s.Token(); got == first {
		t.Error("token should be renewed inside the refresh margin")
	}
}

func TestSignSAS_Deterministic(t *testing.T) {
	expiry := time.Unix(1_700_000_000, 0)
	a := signSAS("hub.azure-devices.net", "p", []byte("k"), expiry)
	b := signSAS("hub.azure-devices.net", "p", []byte("k"), expiry)
	if a != b {
		t.Error("same inputs should produce the same signature")
	}
	if c := signSAS("hub.azure-devices.net", "p", []byte("other"), expiry); c == a {
		t.Error("different keys should produce different signatures")
	}
}
