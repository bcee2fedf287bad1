package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

const multiSetFixture = `{
	"total": 2,
	"setlist": [
		{
			"id": "abc123",
			"eventDate": "12-03-2022",
			"sets": {
				"set": [
					{"song": [{"name": "Song1"}, {"name": "Song2"}]},
					{"encore": 1, "song": [{"name": "Song3"}]}
				]
			}
		},
		{
			"id": "def456",
			"eventDate": "10-03-2022",
			"sets": {
				"set": [
					{"song": [{"name": "ShouldNotAppear"}]}
				]
			}
		}
	]
}`

func newTestSetlistClient(t *testing.T, srv *httptest.Server) *SetlistFMClient {
	t.Helper()
	client := NewSetlistFMClient("test-key", srv.Client(), nil)
	client.baseURL = srv.URL
	return client
}

func TestSetlistFMClient_Setlist(t *testing.T) {
	ctx := context.Background()

	t.Run("flattens all set segments in order", func(t *testing.T) {
		var gotQuery map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("x-api-key") != "test-key" {
				t.Error("expected x-api-key header")
			}
			if r.Header.Get("Accept") != "application/json" {
				t.Error("expected Accept: application/json header")
			}

			gotQuery = map[string]string{}
			for k := range r.URL.Query() {
				gotQuery[k] = r.URL.Query().Get(k)
			}

			w.Write([]byte(multiSetFixture))
		}))
		defer srv.Close()

		songs, err := newTestSetlistClient(t, srv).Setlist(ctx, SetlistQuery{
			Artist: "Coldplay",
			City:   "São Paulo",
			Year:   "2022",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := []string{"Song1", "Song2", "Song3"}
		if !reflect.DeepEqual(songs, want) {
			t.Errorf("Setlist() = %v, want %v", songs, want)
		}

		if gotQuery["artistName"] != "Coldplay" {
			t.Errorf("expected artistName=Coldplay, got %s", gotQuery["artistName"])
		}
		if gotQuery["cityName"] != "São Paulo" {
			t.Errorf("expected cityName filter, got %s", gotQuery["cityName"])
		}
		if gotQuery["year"] != "2022" {
			t.Errorf("expected year filter, got %s", gotQuery["year"])
		}
	})

	t.Run("absent filters are omitted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if _, ok := q["cityName"]; ok {
				t.Error("cityName should be omitted when city is absent")
			}
			if _, ok := q["year"]; ok {
				t.Error("year should be omitted when year is absent")
			}
			w.Write([]byte(`{"total": 0, "setlist": []}`))
		}))
		defer srv.Close()

		_, err := newTestSetlistClient(t, srv).Setlist(ctx, SetlistQuery{Artist: "Metallica"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty result set yields empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"total": 0, "setlist": []}`))
		}))
		defer srv.Close()

		songs, err := newTestSetlistClient(t, srv).Setlist(ctx, SetlistQuery{Artist: "Nobody"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if songs == nil {
			t.Fatal("expected empty slice, got nil")
		}
		if len(songs) != 0 {
			t.Errorf("expected no songs, got %v", songs)
		}
	})

	t.Run("non-200 status yields empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}))
		defer srv.Close()

		songs, err := newTestSetlistClient(t, srv).Setlist(ctx, SetlistQuery{Artist: "Unknown"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(songs) != 0 {
			t.Errorf("expected no songs, got %v", songs)
		}
	})

	t.Run("transport failure yields empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused

		songs, err := newTestSetlistClient(t, srv).Setlist(ctx, SetlistQuery{Artist: "Anyone"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(songs) != 0 {
			t.Errorf("expected no songs, got %v", songs)
		}
	})

	t.Run("malformed body yields empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}))
		defer srv.Close()

		songs, err := newTestSetlistClient(t, srv).Setlist(ctx, SetlistQuery{Artist: "Anyone"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(songs) != 0 {
			t.Errorf("expected no songs, got %v", songs)
		}
	})

	t.Run("cancelled context propagates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(multiSetFixture))
		}))
		defer srv.Close()

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestSetlistClient(t, srv).Setlist(cancelled, SetlistQuery{Artist: "Coldplay"})
		if err == nil {
			t.Error("expected error for cancelled context")
		}
	})

	t.Run("songs without names are skipped", func(t *testing.T) {
		fixture := `{"total": 1, "setlist": [{"sets": {"set": [{"song": [{"name": "Kept"}, {}]}]}}]}`
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(fixture))
		}))
		defer srv.Close()

		songs, err := newTestSetlistClient(t, srv).Setlist(ctx, SetlistQuery{Artist: "Anyone"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := []string{"Kept"}
		if !reflect.DeepEqual(songs, want) {
			t.Errorf("Setlist() = %v, want %v", songs, want)
		}
	})
}
