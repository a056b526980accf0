package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	config "github.com/maheshrc27/postdispatch/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type graphCall struct {
	path string
	form map[string]string
}

type fakeGraph struct {
	mu    sync.Mutex
	calls []graphCall
}

func (g *fakeGraph) record(r *http.Request) graphCall {
	_ = r.ParseForm()
	c := graphCall{path: r.URL.Path, form: map[string]string{}}
	for k := range r.PostForm {
		c.form[k] = r.PostForm.Get(k)
	}
	g.mu.Lock()
	g.calls = append(g.calls, c)
	g.mu.Unlock()
	return c
}

func newTestFacebookAdapter(t *testing.T, handler func(g *fakeGraph, w http.ResponseWriter, r *http.Request)) (PlatformAdapter, *fakeGraph) {
	t.Helper()
	g := &fakeGraph{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(g, w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Config{}
	cfg.Facebook.GraphURL = srv.URL + "/"
	cfg.Facebook.APIVersion = "v18.0"
	return NewFacebookAdapter(cfg, nil), g
}

func TestFacebookAdapter_TextPost(t *testing.T) {
	adapter, g := newTestFacebookAdapter(t, func(g *fakeGraph, w http.ResponseWriter, r *http.Request) {
		g.record(r)
		writeJSON(w, map[string]string{"id": "123_456"})
	})

	res, err := adapter.PostToPage(context.Background(), "123", "tok", PostContent{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "123_456", res.PostID)
	assert.Equal(t, "https://www.facebook.com/123_456", res.PostURL)

	require.Len(t, g.calls, 1)
	assert.Equal(t, "/v18.0/123/feed", g.calls[0].path)
	assert.Equal(t, "hello", g.calls[0].form["message"])
	assert.Equal(t, "tok", g.calls[0].form["access_token"])
}

func TestFacebookAdapter_SinglePhoto(t *testing.T) {
	adapter, g := newTestFacebookAdapter(t, func(g *fakeGraph, w http.ResponseWriter, r *http.Request) {
		g.record(r)
		writeJSON(w, map[string]string{"id": "photo_1", "post_id": "123_789"})
	})

	res, err := adapter.PostToPage(context.Background(), "123", "tok", PostContent{
		Message:   "look",
		ImageURLs: []string{"https://cdn.example.com/a.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "photo_1", res.PostID)
	assert.Equal(t, "https://www.facebook.com/123_789", res.PostURL)

	require.Len(t, g.calls, 1)
	assert.Equal(t, "/v18.0/123/photos", g.calls[0].path)
	assert.Equal(t, "https://cdn.example.com/a.jpg", g.calls[0].form["url"])
	assert.Equal(t, "look", g.calls[0].form["caption"])
}

func TestFacebookAdapter_Album(t *testing.T) {
	photoIDs := []string{"m1", "m2"}
	adapter, g := newTestFacebookAdapter(t, func(g *fakeGraph, w http.ResponseWriter, r *http.Request) {
		c := g.record(r)
		if c.path == "/v18.0/123/photos" {
			g.mu.Lock()
			n := len(g.calls)
			g.mu.Unlock()
			writeJSON(w, map[string]string{"id": photoIDs[n-1]})
			return
		}
		writeJSON(w, map[string]string{"id": "123_album"})
	})

	res, err := adapter.PostToPage(context.Background(), "123", "tok", PostContent{
		Message:   "two pics",
		ImageURLs: []string{"https://cdn/a.jpg", "https://cdn/b.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "123_album", res.PostID)

	require.Len(t, g.calls, 3)
	for _, c := range g.calls[:2] {
		assert.Equal(t, "/v18.0/123/photos", c.path)
		assert.Equal(t, "false", c.form["published"])
	}
	feed := g.calls[2]
	assert.Equal(t, "/v18.0/123/feed", feed.path)
	assert.Equal(t, "two pics", feed.form["message"])
	assert.Equal(t, "m1", feed.form["attached_media[0][media_fbid]"])
	assert.Equal(t, "m2", feed.form["attached_media[1][media_fbid]"])
}

func TestFacebookAdapter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		permanent bool
		contains  string
	}{
		{"expired token", `{"error":{"message":"x","code":190,"error_subcode":463}}`, true, "access token has expired"},
		{"missing permission", `{"error":{"message":"x","code":200}}`, true, "Insufficient permissions"},
		{"duplicate", `{"error":{"message":"x","code":506}}`, true, "already been posted"},
		{"rate limited", `{"error":{"message":"x","code":613}}`, false, "rate limit exceeded"},
		{"bad parameter", `{"error":{"message":"bad url","code":100}}`, false, "parameter error: bad url"},
		{"unknown code", `{"error":{"message":"boom","code":1,"error_subcode":99}}`, false, "(1/99): boom"},
		{"not json", `gateway exploded`, false, "unexpected status 502"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, _ := newTestFacebookAdapter(t, func(g *fakeGraph, w http.ResponseWriter, r *http.Request) {
				status := http.StatusBadRequest
				if tt.name == "not json" {
					status = http.StatusBadGateway
				}
				w.WriteHeader(status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := adapter.PostToPage(context.Background(), "123", "tok", PostContent{Message: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestFacebookAdapter_RequiresToken(t *testing.T) {
	adapter, g := newTestFacebookAdapter(t, func(g *fakeGraph, w http.ResponseWriter, r *http.Request) {
		g.record(r)
	})

	_, err := adapter.PostToPage(context.Background(), "123", "", PostContent{Message: "hi"})
	assert.ErrorIs(t, err, ErrNoActivePageToken)
	assert.True(t, IsPermanent(err))
	assert.Empty(t, g.calls)
}
