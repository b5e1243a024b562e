package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/util"
)

// PirateBay categories: 101 music, 104 FLAC
const (
	tpbMusic    = "101"
	tpbLossless = "104"
)

var (
	tpbSizeRe     = regexp.MustCompile(`Size ([0-9.]+\s*[KMGT]i?B)`)
	tpbUploadedRe = regexp.MustCompile(`Uploaded ([0-9]{2}-[0-9]{2})\s+([0-9]{4}|[0-9]{2}:[0-9]{2})`)
)

// PirateBay scrapes the classic Pirate Bay search result page
type PirateBay struct {
	baseURL string
	req     *requester
	now     func() time.Time
}

// NewPirateBay creates the scraper
func NewPirateBay(cfg config.PirateBaySettings, client *http.Client) *PirateBay {
	return &PirateBay{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		req:     newRequester("piratebay", client, 0.5),
		now:     time.Now,
	}
}

func (p *PirateBay) Name() string { return "piratebay" }
func (p *PirateBay) Kind() Kind   { return KindTorrent }

// Search fetches the first result page sorted by seeders
func (p *PirateBay) Search(ctx context.Context, q Query) ([]Result, error) {
	cat := tpbMusic
	if q.Lossless {
		cat = tpbLossless
	}
	searchURL := fmt.Sprintf("%s/search/%s/0/7/%s", p.baseURL, url.PathEscape(q.Term), cat)

	body, err := p.req.get(ctx, searchURL, nil)
	if err != nil {
		return nil, err
	}
	return p.parse(body)
}

func (p *PirateBay) parse(body []byte) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("piratebay: failed to parse page: %w", err)
	}

	var results []Result
	doc.Find("table#searchResult tr").Each(func(_ int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find(".detName a").First().Text())
		magnet, ok := row.Find(`a[href^="magnet:"]`).First().Attr("href")
		if title == "" || !ok {
			return
		}

		desc := strings.ReplaceAll(row.Find("font.detDesc").Text(), "\u00a0", " ")
		r := Result{
			Title:    title,
			URL:      magnet,
			Provider: p.Name(),
			Kind:     KindTorrent,
			Format:   FormatHint(title),
		}
		if href, ok := row.Find(".detName a").First().Attr("href"); ok {
			r.InfoURL = p.absolute(href)
		}
		if m := tpbSizeRe.FindStringSubmatch(desc); m != nil {
			r.Size = util.ParseBytes(m[1])
		}
		if m := tpbUploadedRe.FindStringSubmatch(desc); m != nil {
			r.PubDate = p.parseUploaded(m[1], m[2])
		}

		counts := row.Find(`td[align="right"]`)
		if counts.Length() >= 2 {
			r.Seeders, _ = strconv.Atoi(strings.TrimSpace(counts.Eq(0).Text()))
			r.Peers, _ = strconv.Atoi(strings.TrimSpace(counts.Eq(1).Text()))
		}
		results = append(results, r)
	})

	util.DebugLog("piratebay: parsed %d results", len(results))
	return results, nil
}

func (p *PirateBay) absolute(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return p.baseURL + "/" + strings.TrimLeft(href, "/")
}

// parseUploaded understands "05-21 2019" and "05-21 14:02" (current year)
func (p *PirateBay) parseUploaded(monthDay, yearOrTime string) time.Time {
	now := p.now()
	if strings.Contains(yearOrTime, ":") {
		t, err := time.Parse("01-02 2006 15:04", fmt.Sprintf("%s %d %s", monthDay, now.Year(), yearOrTime))
		if err != nil {
			return time.Time{}
		}
		return t
	}
	t, err := time.Parse("01-02 2006", monthDay+" "+yearOrTime)
	if err != nil {
		return time.Time{}
	}
	return t
}
