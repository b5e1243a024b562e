package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/albumhound/internal/config"
)

func TestGazelleSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key123", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("action") {
		case "index":
			w.Write([]byte(`{"status":"success","response":{"authkey":"AK","passkey":"PK"}}`))
		case "browse":
			assert.Equal(t, "Radiohead", r.URL.Query().Get("artistname"))
			assert.Equal(t, "OK Computer", r.URL.Query().Get("groupname"))
			w.Write([]byte(`{"status":"success","response":{"results":[{
				"groupId":7,"groupName":"OK Computer","artist":"Radiohead","groupYear":1997,"releaseType":"Album",
				"torrents":[
					{"torrentId":70,"media":"CD","format":"FLAC","encoding":"Lossless","size":450000000,"seeders":30,"leechers":1,"time":"2015-05-01 12:00:00"},
					{"torrentId":71,"media":"CD","format":"MP3","encoding":"320","size":130000000,"seeders":10,"leechers":0,"time":"2015-05-02 12:00:00"}
				]}]}}`))
		default:
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
		}
	}))
	defer srv.Close()

	g := NewGazelle(config.GazelleSettings{Name: "ops", URL: srv.URL, APIKey: "key123", Enabled: true}, nil)
	unthrottle(g.req)

	results, err := g.Search(context.Background(), Query{Artist: "Radiohead", Album: "OK Computer", Term: "Radiohead OK Computer"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	flac := results[0]
	assert.Equal(t, "Radiohead - OK Computer (1997) [FLAC Lossless CD]", flac.Title)
	assert.Equal(t, "FLAC", flac.Format)
	assert.Equal(t, 30, flac.Seeders)
	assert.Equal(t, 2015, flac.PubDate.Year())

	u, err := url.Parse(flac.URL)
	require.NoError(t, err)
	assert.Equal(t, "70", u.Query().Get("id"))
	assert.Equal(t, "AK", u.Query().Get("authkey"))
	assert.Equal(t, "PK", u.Query().Get("torrent_pass"))

	assert.Equal(t, 320, results[1].Bitrate)
}

func TestGazelleFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failure","error":"bad credentials"}`))
	}))
	defer srv.Close()

	g := NewGazelle(config.GazelleSettings{URL: srv.URL, APIKey: "x"}, nil)
	unthrottle(g.req)

	_, err := g.Search(context.Background(), Query{Term: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")
}
