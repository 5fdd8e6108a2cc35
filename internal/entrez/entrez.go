// Package entrez is a small client for the NCBI E-utilities endpoints
// the genome search needs: esearch, elink, and efetch.
package entrez

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// httpClient performs requests; tests may replace it with a mock transport.
var httpClient = &http.Client{Timeout: 60 * time.Second}

const defaultBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"

// Client talks to the E-utilities. Base is overridable for tests.
type Client struct {
	Base  string
	Email string
}

func New(email string) *Client {
	return &Client{Base: defaultBase, Email: email}
}

// Search runs esearch on db and returns up to retmax record UIDs.
func (c *Client) Search(db, term string, retmax int) ([]string, error) {
	params := url.Values{
		"db":      {db},
		"term":    {term},
		"retmax":  {fmt.Sprint(retmax)},
		"retmode": {"json"},
	}
	body, err := c.call("esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("esearch %s: %w", db, err)
	}

	var result struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("esearch %s: unexpected response: %w", db, err)
	}
	return result.ESearchResult.IDList, nil
}

// LinkSet groups the outgoing links of one submitted UID by link
// name, e.g. "assembly_nuccore_refseq".
type LinkSet struct {
	Links map[string][]string
}

// LinkSets maps UIDs from one database to another with elink, one
// set per submitted UID, preserving the link names.
func (c *Client) LinkSets(fromDB, toDB string, ids []string) ([]LinkSet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{
		"dbfrom":  {fromDB},
		"db":      {toDB},
		"retmode": {"json"},
	}
	// one id parameter per UID keeps linksets separated per input
	for _, id := range ids {
		params.Add("id", id)
	}
	body, err := c.call("elink.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("elink %s->%s: %w", fromDB, toDB, err)
	}

	var result struct {
		LinkSets []struct {
			LinkSetDBs []struct {
				LinkName string   `json:"linkname"`
				Links    []string `json:"links"`
			} `json:"linksetdbs"`
		} `json:"linksets"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("elink %s->%s: unexpected response: %w", fromDB, toDB, err)
	}

	sets := make([]LinkSet, 0, len(result.LinkSets))
	for _, set := range result.LinkSets {
		links := map[string][]string{}
		for _, db := range set.LinkSetDBs {
			links[db.LinkName] = append(links[db.LinkName], db.Links...)
		}
		sets = append(sets, LinkSet{Links: links})
	}
	return sets, nil
}

// Link maps UIDs from one database to another, flattening every link
// name into one deduplicated UID list.
func (c *Client) Link(fromDB, toDB string, ids []string) ([]string, error) {
	sets, err := c.LinkSets(fromDB, toDB, ids)
	if err != nil {
		return nil, err
	}
	var links []string
	seen := map[string]bool{}
	for _, set := range sets {
		for _, ids := range set.Links {
			for _, id := range ids {
				if !seen[id] {
					seen[id] = true
					links = append(links, id)
				}
			}
		}
	}
	return links, nil
}

// Accessions resolves UIDs to accession numbers via efetch.
func (c *Client) Accessions(db string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{
		"db":      {db},
		"id":      {strings.Join(ids, ",")},
		"rettype": {"acc"},
		"retmode": {"text"},
	}
	body, err := c.call("efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("efetch accessions: %w", err)
	}

	var accs []string
	for _, line := range strings.Split(string(body), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			accs = append(accs, line)
		}
	}
	return accs, nil
}

// FetchFasta downloads records in FASTA format in one batch.
func (c *Client) FetchFasta(db string, ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	params := url.Values{
		"db":      {db},
		"id":      {strings.Join(ids, ",")},
		"rettype": {"fasta"},
		"retmode": {"text"},
	}
	body, err := c.call("efetch.fcgi", params)
	if err != nil {
		return "", fmt.Errorf("efetch fasta: %w", err)
	}
	return string(body), nil
}

// FetchGenBank downloads the full annotated GenBank record for acc.
func (c *Client) FetchGenBank(acc string) (string, error) {
	params := url.Values{
		"db":      {"nucleotide"},
		"id":      {acc},
		"rettype": {"gbwithparts"},
		"retmode": {"text"},
	}
	body, err := c.call("efetch.fcgi", params)
	if err != nil {
		return "", fmt.Errorf("efetch genbank %s: %w", acc, err)
	}
	return string(body), nil
}

// call POSTs one request with up to 3 attempts. Rate limiting backs
// off harder than transport errors because NCBI throttles bursts.
func (c *Client) call(endpoint string, params url.Values) ([]byte, error) {
	if key := os.Getenv("NCBI_API_KEY"); key != "" {
		params.Set("api_key", key)
	}
	if c.Email != "" {
		params.Set("email", c.Email)
	}

	target := c.Base + endpoint
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := httpClient.PostForm(target, params)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK && readErr == nil:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%s returned 429", endpoint)
			log.Warn("NCBI rate limit hit, backing off", "endpoint", endpoint, "attempt", attempt)
			time.Sleep(time.Duration(attempt) * 15 * time.Second)
		case readErr != nil:
			lastErr = readErr
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		default:
			return nil, fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}
	return nil, lastErr
}
