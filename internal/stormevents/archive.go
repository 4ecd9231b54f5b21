package stormevents

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"golang.org/x/net/html"
)

// detailsPattern matches yearly details files such as
// StormEvents_details-ftp_v1.0_d2017_c20230118.csv.gz. Group 1 is the data
// year, group 2 the creation date of the revision.
var detailsPattern = regexp.MustCompile(`StormEvents_details-ftp_v\d\.\d_d(\d{4})_c(\d{8})\.csv\.gz`)

// Lister fetches a remote document.
type Lister interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Archive resolves data years to the newest details file in the NCEI
// directory listing.
type Archive struct {
	lister  Lister
	baseURL string
}

// NewArchive creates an Archive over the directory at baseURL.
func NewArchive(lister Lister, baseURL string) *Archive {
	return &Archive{lister: lister, baseURL: baseURL}
}

// BaseURL returns the listing URL.
func (a *Archive) BaseURL() string { return a.baseURL }

// YearURLs returns the details file URL for each requested year present in
// the listing. Years without a file are absent from the map. When several
// revisions exist the most recently created wins.
func (a *Archive) YearURLs(ctx context.Context, years []int) (map[int]string, error) {
	page, err := a.lister.Get(ctx, a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	base, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse archive url: %w", err)
	}

	wanted := make(map[int]struct{}, len(years))
	for _, y := range years {
		wanted[y] = struct{}{}
	}

	type candidate struct {
		href    string
		created string
	}
	best := make(map[int]candidate)
	for _, href := range links(page) {
		m := detailsPattern.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		if _, ok := wanted[year]; !ok {
			continue
		}
		if cur, ok := best[year]; !ok || m[2] > cur.created {
			best[year] = candidate{href: href, created: m[2]}
		}
	}

	out := make(map[int]string, len(best))
	for year, c := range best {
		ref, err := url.Parse(c.href)
		if err != nil {
			continue
		}
		out[year] = base.ResolveReference(ref).String()
	}
	return out, nil
}

// links returns the href of every anchor in an HTML document.
func links(page []byte) []string {
	var out []string
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					out = append(out, string(val))
				}
				if !more {
					break
				}
			}
		}
	}
}
