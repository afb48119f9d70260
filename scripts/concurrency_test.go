//go:build ignore
// +build ignore

// Package main provides a manual concurrency stress test for the progress
// endpoint of the BookTracker API.
//
// Usage:
//
//	go run ./scripts/concurrency_test.go <external_id> [workers]
//
// Or use the convenience environment variables:
//
//	EXTERNAL_ID=OL893415W  WORKERS=25  go run ./scripts/concurrency_test.go
//
// What it does:
//  1. Fires N goroutines, all reporting progress on the same book at once.
//     Worker i reports currentPage=i with one page read.
//  2. Prints how many updates were accepted, rejected or failed.
//  3. Re-fetches the book and checks that progress matches pageRead/totalPages
//     and that one session was recorded per accepted update.
//
// Prerequisites:
//   - Server must be running.
//   - The book must exist and have totalPages >= N (or 0 for unknown).

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	defaultServerAddr = "http://localhost:8080"
	defaultWorkers    = 20
)

type updateResult struct {
	Page       int
	StatusCode int
	Err        error
}

type session struct {
	PagesRead int `json:"pagesRead"`
	StartPage int `json:"startPage"`
	EndPage   int `json:"endPage"`
}

type book struct {
	ExternalID      string    `json:"externalId"`
	Status          string    `json:"status"`
	PageRead        int       `json:"pageRead"`
	TotalPages      int       `json:"totalPages"`
	CurrentProgress int       `json:"currentProgress"`
	ReadingSessions []session `json:"readingSessions"`
}

func main() {
	serverAddr := os.Getenv("SERVER_URL")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}

	externalID := os.Getenv("EXTERNAL_ID")
	workers := defaultWorkers
	if w, err := strconv.Atoi(os.Getenv("WORKERS")); err == nil && w > 0 {
		workers = w
	}

	args := os.Args[1:]
	if len(args) >= 1 {
		externalID = args[0]
	}
	if len(args) >= 2 {
		if w, err := strconv.Atoi(args[1]); err == nil && w > 0 {
			workers = w
		}
	}

	if externalID == "" {
		log.Fatal("Usage: EXTERNAL_ID=<id> WORKERS=<n> go run ./scripts/concurrency_test.go\n" +
			"  or: go run ./scripts/concurrency_test.go <external_id> [workers]")
	}

	before, err := fetchBook(serverAddr, externalID)
	if err != nil {
		log.Fatalf("Cannot load book %s: %v", externalID, err)
	}

	fmt.Printf("=== Progress Concurrency Test ===\n")
	fmt.Printf("Server  : %s\n", serverAddr)
	fmt.Printf("Book    : %s (%d/%d pages, %d sessions)\n", externalID, before.PageRead, before.TotalPages, len(before.ReadingSessions))
	fmt.Printf("Workers : %d\n\n", workers)

	results := make([]updateResult, workers)
	var wg sync.WaitGroup

	// Fire all goroutines simultaneously using a barrier.
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			results[idx] = reportProgress(serverAddr, externalID, idx+1)
		}(i)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)

	wg.Wait()
	fmt.Println("All requests completed.")
	fmt.Println()

	var accepted, rejected, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] page=%-4d err=%v\n", r.Page, r.Err)
		case r.StatusCode == http.StatusOK:
			accepted++
		case r.StatusCode == http.StatusBadRequest:
			rejected++
			fmt.Printf("  [REJ ] page=%-4d status=%d\n", r.Page, r.StatusCode)
		default:
			failures++
			fmt.Printf("  [FAIL] page=%-4d status=%d\n", r.Page, r.StatusCode)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Accepted : %d\n", accepted)
	fmt.Printf("Rejected : %d\n", rejected)
	fmt.Printf("Failures : %d\n", failures)
	fmt.Printf("Total    : %d\n\n", workers)

	after, err := fetchBook(serverAddr, externalID)
	if err != nil {
		log.Fatalf("Cannot re-fetch book %s: %v", externalID, err)
	}

	fmt.Println("--- Invariant Check ---")
	ok := true

	want := 0
	if after.TotalPages > 0 {
		want = int(math.Round(float64(after.PageRead) / float64(after.TotalPages) * 100))
	}
	if after.CurrentProgress != want {
		ok = false
		fmt.Printf("[BROKEN] progress %d%% does not match %d/%d pages (want %d%%)\n", after.CurrentProgress, after.PageRead, after.TotalPages, want)
	}

	newSessions := len(after.ReadingSessions) - len(before.ReadingSessions)
	if newSessions != accepted {
		ok = false
		fmt.Printf("[BROKEN] %d sessions recorded for %d accepted updates (lost updates)\n", newSessions, accepted)
	}
	for i, s := range after.ReadingSessions {
		if s.EndPage-s.StartPage != s.PagesRead {
			ok = false
			fmt.Printf("[BROKEN] session %d spans %d..%d but reports %d pages\n", i, s.StartPage, s.EndPage, s.PagesRead)
		}
	}

	fmt.Printf("Final state: page %d/%d, progress %d%%, status %s, sessions %d\n",
		after.PageRead, after.TotalPages, after.CurrentProgress, after.Status, len(after.ReadingSessions))

	if !ok || failures > 0 {
		fmt.Printf("\n[WARNING] invariant violations or failed requests, check server logs for details.\n")
		os.Exit(1)
	}
	fmt.Println("All invariants hold.")
}

// reportProgress sends PUT /api/books/progress/{externalID} with one page read.
func reportProgress(serverAddr, externalID string, page int) updateResult {
	url := fmt.Sprintf("%s/api/books/progress/%s", serverAddr, externalID)
	body := fmt.Sprintf(`{"currentPage":%d,"pagesRead":1}`, page)

	req, err := http.NewRequest(http.MethodPut, url, bytes.NewBufferString(body))
	if err != nil {
		return updateResult{Page: page, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return updateResult{Page: page, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return updateResult{Page: page, StatusCode: resp.StatusCode}
}

func fetchBook(serverAddr, externalID string) (*book, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(fmt.Sprintf("%s/api/books/find/%s", serverAddr, externalID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}

	var b book
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("bad JSON: %s", raw)
	}
	return &b, nil
}
