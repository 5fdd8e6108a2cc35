package phaster

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const islandSummary = "Totally 2 intact prophage regions have been identified.\n" +
	"                                  REGION       REGION_LENGTH    COMPLETENESS(score)   SPECIFIC_KEYWORD    REGION_POSITION\n" +
	"                                  ----         ----             ----                  ----                ----\n" +
	"                                  1            32.6Kb           intact(110)           phage_lysin         10000-42600\n" +
	"                                  2            18.2Kb           questionable(80)      tail_protein        90000-108200\n"

func summaryReply(t *testing.T) string {
	t.Helper()
	reply, err := json.Marshal(map[string]string{"summary": islandSummary})
	if err != nil {
		t.Fatal(err)
	}
	return string(reply)
}

func Test_parseSummary(t *testing.T) {
	islands := parseSummary(islandSummary)

	want := []Island{{Start: 10000, End: 42600}, {Start: 90000, End: 108200}}
	if !reflect.DeepEqual(islands, want) {
		t.Errorf("parseSummary() = %v, want %v", islands, want)
	}
}

func Test_parseSummary_noIslands(t *testing.T) {
	if islands := parseSummary("No prophage regions were identified.\n"); islands != nil {
		t.Errorf("parseSummary() = %v, want nil", islands)
	}
}

func Test_Client_Locate(t *testing.T) {
	reply := summaryReply(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, reply)
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, CacheDir: t.TempDir(), PollInterval: time.Millisecond, MaxPolls: 2}

	tests := []struct {
		name string
		pos  int
		want string
	}{
		{"inside the first island", 20000, "1"},
		{"inside the second island", 95000, "2"},
		{"between islands", 50000, "outside island(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Locate("NC_000001.1", tt.pos, "")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Locate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_Client_Locate_noIslands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"summary":"No prophage regions were identified.\n"}`)
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, CacheDir: t.TempDir(), PollInterval: time.Millisecond, MaxPolls: 2}

	got, err := c.Locate("NC_000002.1", 100, "")

	if err != nil {
		t.Fatal(err)
	}
	if got != "none identified" {
		t.Errorf("Locate() = %v, want none identified", got)
	}
}

func Test_Client_Locate_usesCache(t *testing.T) {
	reply := summaryReply(t)
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, reply)
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, CacheDir: t.TempDir(), PollInterval: time.Millisecond, MaxPolls: 2}

	if _, err := c.Locate("NC_000001.1", 20000, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Locate("NC_000001.1", 95000, ""); err != nil {
		t.Fatal(err)
	}
	if requests != 1 {
		t.Errorf("Locate() made %d requests, want 1 with a warm cache", requests)
	}
}

func Test_Client_Locate_pollsQueuedJob(t *testing.T) {
	reply := summaryReply(t)
	gets := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets++
		if gets < 3 {
			fmt.Fprint(w, `{"job_id":"ZZ_1234","status":"Running..."}`)
			return
		}
		fmt.Fprint(w, reply)
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, CacheDir: t.TempDir(), PollInterval: time.Millisecond, MaxPolls: 5}

	got, err := c.Locate("NC_000003.1", 20000, "")

	if err != nil {
		t.Fatal(err)
	}
	if got != "1" {
		t.Errorf("Locate() = %v, want 1", got)
	}
	if gets < 3 {
		t.Errorf("Locate() polled %d times, want at least 3", gets)
	}
}

func Test_Client_submit_shortSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.gb")
	if err := os.WriteFile(path, []byte("LOCUS       TINY\n//\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c := &Client{URL: "http://127.0.0.1:0", PollInterval: time.Millisecond, MaxPolls: 0}

	if _, err := c.submit("TINY", path); err == nil {
		t.Error("submit() accepted a sequence under the service minimum")
	}
}
