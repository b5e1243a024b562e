package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/albumhound/internal/config"
)

func TestWebhook(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, srv.Client()).Notify(context.Background(), Event{
		Kind: KindSnatch, Title: "Snatched", Message: "Low - Things We Lost in the Fire", AlbumID: "rg-1",
	})
	require.NoError(t, err)
	assert.Equal(t, KindSnatch, got.Kind)
	assert.Equal(t, "rg-1", got.AlbumID)
	assert.Equal(t, "Low - Things We Lost in the Fire", got.Message)
}

func TestWebhookRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, srv.Client()).Notify(context.Background(), Event{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestPushover(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Write([]byte(`{"status":1}`))
	}))
	defer srv.Close()

	p := NewPushover(srv.URL, "tok", "usr", srv.Client())
	require.NoError(t, p.Notify(context.Background(), Event{Title: "Downloaded", Message: "Slint - Spiderland"}))
	assert.Equal(t, "tok", form.Get("token"))
	assert.Equal(t, "usr", form.Get("user"))
	assert.Equal(t, "Downloaded", form.Get("title"))
	assert.Equal(t, "Slint - Spiderland", form.Get("message"))
}

type countingNotifier struct {
	calls atomic.Int32
	err   error
}

func (c *countingNotifier) Notify(ctx context.Context, e Event) error {
	c.calls.Add(1)
	return c.err
}

func TestMultiJoinsErrors(t *testing.T) {
	a := &countingNotifier{}
	b := &countingNotifier{err: errors.New("down")}
	err := Multi{a, b}.Notify(context.Background(), Event{})
	require.Error(t, err)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
}

func TestDispatcherTriggers(t *testing.T) {
	n := &countingNotifier{}
	d := &Dispatcher{notifier: n, onSnatch: false, onDownload: true}

	d.Send(context.Background(), Event{Kind: KindSnatch})
	assert.Equal(t, int32(0), n.calls.Load())

	d.Send(context.Background(), Event{Kind: KindDownload})
	assert.Equal(t, int32(1), n.calls.Load())
}

func TestDispatcherSwallowsErrors(t *testing.T) {
	n := &countingNotifier{err: errors.New("boom")}
	d := NewDispatcher(n)
	assert.NotPanics(t, func() { d.Send(context.Background(), Event{Kind: KindSnatch}) })
	assert.Equal(t, int32(1), n.calls.Load())
}

func TestNewFromSettings(t *testing.T) {
	d := New(config.NotifySettings{}, nil)
	assert.False(t, d.Enabled())

	d = New(config.NotifySettings{WebhookURL: "http://localhost/hook", PushoverToken: "t", PushoverUser: "u"}, nil)
	assert.True(t, d.Enabled())
	assert.Len(t, d.notifier.(Multi), 2)

	var nilDispatcher *Dispatcher
	assert.False(t, nilDispatcher.Enabled())
	nilDispatcher.Send(context.Background(), Event{Kind: KindSnatch})
}
