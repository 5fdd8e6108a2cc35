// Package phaster queries the PHASTER web service to learn whether a
// genomic position falls inside a predicted prophage island.
package phaster

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// httpClient performs requests; tests may replace it with a mock transport.
var httpClient = &http.Client{Timeout: 20 * time.Second}

const defaultURL = "http://phaster.ca/phaster_api"

// minPostLength is the shortest sequence PHASTER accepts for upload.
const minPostLength = 2000

// Island is one predicted prophage region in summary order.
type Island struct {
	Start int
	End   int
}

// Client looks up or submits sequences and caches summaries on disk
// so reruns do not hit the service again.
type Client struct {
	URL      string
	CacheDir string

	// PollInterval is the wait between job status checks for queued
	// submissions.
	PollInterval time.Duration

	// MaxPolls bounds how long one accession is waited on.
	MaxPolls int
}

func New(cacheDir string) *Client {
	return &Client{
		URL:          defaultURL,
		CacheDir:     cacheDir,
		PollInterval: 30 * time.Second,
		MaxPolls:     20,
	}
}

// Locate reports the island verdict for pos on the sequence under acc:
// the 1-based island number when pos falls inside one, "outside
// island(s)" when islands exist but none contain pos, and "none
// identified" when the summary lists no islands. genbankPath, when not
// empty, is uploaded if the accession lookup fails.
func (c *Client) Locate(acc string, pos int, genbankPath string) (string, error) {
	islands, err := c.islands(acc, genbankPath)
	if err != nil {
		return "", err
	}
	if len(islands) == 0 {
		return "none identified", nil
	}
	for i, island := range islands {
		if island.Start <= pos && pos <= island.End {
			return strconv.Itoa(i + 1), nil
		}
	}
	return "outside island(s)", nil
}

func (c *Client) islands(acc, genbankPath string) ([]Island, error) {
	if summary, ok := c.cached(acc); ok {
		return parseSummary(summary), nil
	}

	summary, err := c.lookup(acc)
	if err != nil && genbankPath != "" {
		log.Debug("accession lookup failed, submitting sequence", "acc", acc, "err", err)
		summary, err = c.submit(acc, genbankPath)
	}
	if err != nil {
		return nil, err
	}

	c.store(acc, summary)
	return parseSummary(summary), nil
}

// lookup asks for a precomputed analysis by accession.
func (c *Client) lookup(acc string) (string, error) {
	return c.poll(func() (*http.Response, error) {
		return httpClient.Get(c.URL + "?acc=" + acc)
	})
}

// submit uploads a GenBank file and waits for the job to finish.
// Sequences under the service minimum are rejected up front.
func (c *Client) submit(acc, genbankPath string) (string, error) {
	payload, err := os.ReadFile(genbankPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s for upload: %w", genbankPath, err)
	}
	if len(payload) < minPostLength {
		return "", fmt.Errorf("sequence %s too short for island analysis", acc)
	}

	resp, err := httpClient.Post(c.URL, "application/x-www-form-urlencoded", strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("phaster submit %s: %w", acc, err)
	}
	reply, err := decode(resp)
	if err != nil {
		return "", fmt.Errorf("phaster submit %s: %w", acc, err)
	}
	if reply.Error != "" {
		return "", fmt.Errorf("phaster submit %s: %s", acc, reply.Error)
	}
	if reply.Summary != "" {
		return reply.Summary, nil
	}

	jobID := reply.JobID
	return c.poll(func() (*http.Response, error) {
		return httpClient.Get(c.URL + "?acc=" + jobID)
	})
}

type apiReply struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
	Error   string `json:"error"`
}

// poll repeats a request until the reply carries a summary, an error,
// or the poll budget runs out.
func (c *Client) poll(request func() (*http.Response, error)) (string, error) {
	for attempt := 0; attempt <= c.MaxPolls; attempt++ {
		if attempt > 0 {
			time.Sleep(c.PollInterval)
		}
		resp, err := request()
		if err != nil {
			continue
		}
		reply, err := decode(resp)
		if err != nil {
			continue
		}
		switch {
		case reply.Summary != "":
			return reply.Summary, nil
		case reply.Error != "":
			return "", fmt.Errorf("phaster: %s", reply.Error)
		}
		// job still queued or running
	}
	return "", fmt.Errorf("phaster gave no summary after %d polls", c.MaxPolls)
}

func decode(resp *http.Response) (apiReply, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiReply{}, err
	}
	var reply apiReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return apiReply{}, fmt.Errorf("undecodable reply: %w", err)
	}
	return reply, nil
}

// parseSummary reads the island table that follows the "----" rule in
// a PHASTER summary; the fifth column holds the region range.
func parseSummary(summary string) []Island {
	var islands []Island
	recording := false
	for _, line := range strings.Split(summary, "\n") {
		if !recording {
			recording = strings.HasSuffix(strings.TrimSpace(line), "----")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		lo, hi, found := strings.Cut(fields[4], "-")
		if !found {
			continue
		}
		start, err1 := strconv.Atoi(lo)
		end, err2 := strconv.Atoi(hi)
		if err1 != nil || err2 != nil {
			continue
		}
		islands = append(islands, Island{Start: start, End: end})
	}
	return islands
}

func (c *Client) cachePath(acc string) string {
	base, _, _ := strings.Cut(acc, ".")
	return filepath.Join(c.CacheDir, base+".txt")
}

func (c *Client) cached(acc string) (string, bool) {
	if c.CacheDir == "" {
		return "", false
	}
	data, err := os.ReadFile(c.cachePath(acc))
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (c *Client) store(acc, summary string) {
	if c.CacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.CacheDir, 0755); err != nil {
		return
	}
	if err := os.WriteFile(c.cachePath(acc), []byte(summary), 0644); err != nil {
		log.Debug("failed to cache island summary", "acc", acc, "err", err)
	}
}
