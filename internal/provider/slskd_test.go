package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/albumhound/internal/config"
)

func TestSlskdSearchGroupsByDirectory(t *testing.T) {
	var polls, deleted int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "apikey", r.Header.Get("X-API-Key"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v0/searches":
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), `"searchText":"Radiohead OK Computer"`)
			w.Write([]byte(`{}`))
		case r.Method == http.MethodDelete:
			atomic.AddInt32(&deleted, 1)
		case strings.HasSuffix(r.URL.Path, "/responses"):
			w.Write([]byte(`[
				{"username":"alice","hasFreeUploadSlot":true,"files":[
					{"filename":"@@music\\Radiohead\\OK Computer\\02 Paranoid Android.flac","size":40000000,"extension":"flac"},
					{"filename":"@@music\\Radiohead\\OK Computer\\01 Airbag.flac","size":30000000,"extension":"flac"},
					{"filename":"@@music\\Radiohead\\OK Computer\\cover.jpg","size":100000,"extension":"jpg"}
				]},
				{"username":"bob","hasFreeUploadSlot":false,"files":[
					{"filename":"D:\\mp3\\Radiohead - OK Computer\\01.mp3","size":9000000,"bitRate":320,"extension":""}
				]}
			]`))
		default:
			if atomic.AddInt32(&polls, 1) < 2 {
				w.Write([]byte(`{"state":"InProgress","isComplete":false}`))
				return
			}
			w.Write([]byte(`{"state":"Completed, Succeeded","isComplete":true}`))
		}
	}))
	defer srv.Close()

	s := NewSlskd(config.SlskdSettings{URL: srv.URL, APIKey: "apikey", Enabled: true}, nil)
	unthrottle(s.req)
	s.pollInterval = 5 * time.Millisecond

	results, err := s.Search(context.Background(), Query{Term: "Radiohead OK Computer"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	alice := results[0]
	assert.Equal(t, "Radiohead - OK Computer", alice.Title)
	assert.Equal(t, "alice", alice.Username)
	assert.Equal(t, KindSoulseek, alice.Kind)
	assert.Equal(t, int64(70000000), alice.Size)
	assert.Equal(t, "FLAC", alice.Format)
	assert.Equal(t, 1, alice.Seeders)
	require.Len(t, alice.Files, 2)
	assert.Contains(t, alice.Files[0].Filename, "01 Airbag.flac")

	bob := results[1]
	assert.Equal(t, "Radiohead - OK Computer", bob.Title)
	assert.Equal(t, 320, bob.Bitrate)
	assert.Equal(t, "MP3", bob.Format)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(2))
	assert.Equal(t, int32(1), atomic.LoadInt32(&deleted))
}
