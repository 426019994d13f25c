package sweep

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matta/chatsweep/internal/discord"
	"github.com/matta/chatsweep/internal/discordhttp"
	"github.com/matta/chatsweep/internal/message"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"
)

// fakeDiscord is a tiny in-memory stand-in for the channel endpoints.
// Every delete of a given id is answered with a rate limit the first
// time it is seen.
type fakeDiscord struct {
	mu        sync.Mutex
	messages  []message.Message // newest first
	throttled map[string]bool
	deletes   []string
	auths     []string
}

func (f *fakeDiscord) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auths = append(f.auths, r.Header.Get("Authorization"))

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/users/@me":
		json.NewEncoder(w).Encode(message.Identity{ID: "me", Username: "me"})
	case r.Method == http.MethodGet && r.URL.Path == "/channels/9/messages":
		before := r.URL.Query().Get("before")
		page := []message.Message{}
		for _, m := range f.messages {
			if before == "" || m.ID < before {
				page = append(page, m)
			}
			if len(page) == 2 {
				break
			}
		}
		json.NewEncoder(w).Encode(page)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/channels/9/messages/"):
		id := strings.TrimPrefix(r.URL.Path, "/channels/9/messages/")
		f.deletes = append(f.deletes, id)
		if !f.throttled[id] {
			f.throttled[id] = true
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message": "You are being rate limited.", "retry_after": 0.001, "global": false}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func TestRunAgainstDiscordClient(t *testing.T) {
	fake := &fakeDiscord{
		messages: []message.Message{
			msg("5", "me"), msg("4", "x"), msg("3", "me"), msg("2", "x"), msg("1", "me"),
		},
		throttled: map[string]bool{},
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	httpClient := discordhttp.New(discordhttp.StaticTokenSource("tok", ""), srv.Client().Transport)
	c := discord.New(httpClient,
		discord.WithBaseURL(srv.URL),
		discord.WithLimiter(rate.NewLimiter(rate.Inf, 0)))

	var s sleeps
	st, err := Run(context.Background(), c, "9", Options{PageSize: 2, Sleep: s.sleep})
	if err != nil {
		t.Fatalf("Run() = %v, want nil error", err)
	}
	if st.Deleted != 3 || st.Processed != 5 || st.Failed != 0 {
		t.Errorf("Run() = %+v, want Deleted 3, Processed 5, Failed 0", st)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	// Each id is throttled once and retried exactly once, newest first.
	if diff := cmp.Diff([]string{"5", "5", "3", "3", "1", "1"}, fake.deletes); diff != "" {
		t.Errorf("deletes mismatch (-want +got):\n%s", diff)
	}
	for i, auth := range fake.auths {
		if auth != "tok" {
			t.Errorf("request %d Authorization = %q, want %q", i, auth, "tok")
		}
	}
	if diff := cmp.Diff(sleeps{DefaultPace, DefaultPace, DefaultPace}, s); diff != "" {
		t.Errorf("pacing mismatch (-want +got):\n%s", diff)
	}
}

func TestRunAgainstDiscordClientBadToken(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "401: Unauthorized", "code": 0}`))
	}))
	defer srv.Close()

	c := discord.New(discordhttp.New(discordhttp.StaticTokenSource("bad", ""), srv.Client().Transport),
		discord.WithBaseURL(srv.URL),
		discord.WithLimiter(rate.NewLimiter(rate.Inf, 0)),
		discord.WithSleep(func(context.Context, time.Duration) error { return nil }))

	_, err := Run(context.Background(), c, "9", Options{})
	if err == nil {
		t.Fatal("Run() = nil error, want an authentication error")
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"GET /users/@me"}, paths); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}
