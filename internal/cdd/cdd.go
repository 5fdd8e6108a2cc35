// Package cdd queries the NCBI batch conserved-domain search
// (bwrpsb), used to classify proteins by accession when no local
// profile database is available.
package cdd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// httpClient performs requests; tests may replace it with a mock transport.
var httpClient = &http.Client{Timeout: 40 * time.Second}

const defaultURL = "https://www.ncbi.nlm.nih.gov/Structure/bwrpsb/bwrpsb.cgi"

// Search job status codes reported by bwrpsb.
const (
	statusDone    = "0"
	statusNoInput = "2"
	statusRunning = "3"
)

// Client submits batch searches and polls for their results.
type Client struct {
	URL string

	// PollInterval controls the wait between status checks; the
	// service queues jobs so results are rarely immediate.
	PollInterval time.Duration

	// MaxPolls bounds how long one batch is waited on.
	MaxPolls int
}

func New() *Client {
	return &Client{URL: defaultURL, PollInterval: 3 * time.Second, MaxPolls: 30}
}

// Search submits protein accessions and returns the short name of the
// best conserved-domain hit per accession. Accessions with no hit are
// absent from the result.
func (c *Client) Search(accessions []string) (map[string]string, error) {
	if len(accessions) == 0 {
		return nil, nil
	}

	body, err := c.post(url.Values{
		"db":      {"cdd"},
		"smode":   {"auto"},
		"queries": accessions,
		"dmode":   {"full"},
		"tdata":   {"hits"},
	})
	if err != nil {
		return nil, fmt.Errorf("cdd submit: %w", err)
	}

	cdsid, status := parseJobState(body)
	for poll := 0; status == statusRunning || status == ""; poll++ {
		if poll >= c.MaxPolls {
			return nil, fmt.Errorf("cdd search %s did not finish after %d polls", cdsid, c.MaxPolls)
		}
		if poll == 10 {
			log.Warn("conserved-domain search is slow to respond, still waiting", "cdsid", cdsid)
		}
		time.Sleep(c.PollInterval)
		body, err = c.get(cdsid)
		if err != nil {
			return nil, fmt.Errorf("cdd poll: %w", err)
		}
		cdsid, status = parseJobState(body)
	}

	switch status {
	case statusDone:
		return parseHits(body), nil
	case statusNoInput:
		return nil, nil
	default:
		return nil, fmt.Errorf("cdd search failed with status %s", status)
	}
}

func (c *Client) post(form url.Values) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := httpClient.PostForm(c.URL, form)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt) * 5 * time.Second)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("bwrpsb returned status %d", resp.StatusCode)
		}
		return string(body), nil
	}
	return "", lastErr
}

func (c *Client) get(cdsid string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := httpClient.Get(c.URL + "?cdsid=" + url.QueryEscape(cdsid))
		if err != nil {
			lastErr = err
			time.Sleep(3 * time.Second)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return string(body), nil
	}
	return "", lastErr
}

// parseJobState pulls the cdsid and status code out of a bwrpsb
// response header.
func parseJobState(body string) (cdsid, status string) {
	for _, line := range strings.Split(body, "\n") {
		if i := strings.Index(line, "cdsid"); i >= 0 {
			cdsid = strings.TrimSpace(line[i+len("cdsid"):])
		}
		if strings.Contains(line, "status") {
			fields := strings.Split(line, "\t")
			if len(fields) > 1 {
				status = strings.TrimSpace(fields[1])
			}
		}
	}
	return cdsid, status
}

// parseHits reads the tab-separated hit rows of a finished search.
// The first column tags the query ("Q#1 - >WP_012345.1") and the
// ninth carries the domain short name; the first row per query is the
// best hit.
func parseHits(body string) map[string]string {
	hits := map[string]string{}
	for _, line := range strings.Split(body, "\n") {
		cols := strings.Split(line, "\t")
		if len(cols) < 9 || !strings.HasPrefix(cols[0], "Q#") {
			continue
		}
		_, query, found := strings.Cut(cols[0], " - ")
		if !found {
			continue
		}
		query = strings.TrimPrefix(strings.TrimSpace(query), ">")
		if _, seen := hits[query]; !seen {
			hits[query] = strings.TrimSpace(cols[8])
		}
	}
	return hits
}
