package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Concurrency int
	Duration    time.Duration
	Texts       []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the recognizer service or gateway")
	apiKey := flag.String("api-key", "", "API key (required when targeting the gateway)")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	texts := []string{
		"Mutations in the BRCA1 gene increase the risk of breast and ovarian cancer.",
		"Treatment with imatinib induced remission in patients with chronic myeloid leukemia.",
		"TNF-alpha (tumor necrosis factor alpha) mediates the inflammatory response in rheumatoid arthritis.",
		"Aspirin inhibits cyclooxygenase and reduces prostaglandin synthesis.",
		"The p53 tumor suppressor regulates apoptosis and cell cycle arrest.",
		"Patients with type 2 diabetes mellitus were treated with metformin.",
		"Overexpression of EGFR correlates with poor prognosis in non-small cell lung cancer.",
		"Amyloid beta plaques accumulate in the hippocampus of Alzheimer disease patients.",
		"Vancomycin-resistant Enterococcus faecium was isolated from blood cultures.",
		"Insulin signaling through the PI3K/AKT pathway regulates glucose uptake.",
		"The patient presented with acute myocardial infarction and elevated troponin levels.",
		"Dopamine depletion in the substantia nigra characterizes Parkinson disease.",
		"Interleukin-6 levels were elevated in patients with severe sepsis.",
		"Tamoxifen is a selective estrogen receptor modulator used in breast cancer therapy.",
		"Cystic fibrosis is caused by mutations in the CFTR chloride channel.",
	}

	cfg := Config{
		BaseURL:     *baseURL,
		APIKey:      *apiKey,
		Concurrency: *concurrency,
		Duration:    *duration,
		Texts:       texts,
	}

	fmt.Println("=== Annotation Platform Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Texts:       %d unique\n", len(cfg.Texts))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	annotateURL := cfg.BaseURL + "/api/v1/annotate"

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			textIdx := workerID

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				text := cfg.Texts[textIdx%len(cfg.Texts)]
				textIdx++

				body, _ := json.Marshal(map[string]string{"text": text})

				start := time.Now()
				resp, err := client.Do(mustNewRequest(ctx, annotateURL, body, cfg.APIKey))
				duration := time.Since(start)

				if err != nil {
					stats.RecordRequest(duration, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				stats.RecordRequest(duration, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func mustNewRequest(ctx context.Context, rawURL string, body []byte, apiKey string) *http.Request {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	return req
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])

		var sumSquared float64
		avgFloat := float64(avg)
		for _, l := range latencies {
			diff := float64(l) - avgFloat
			sumSquared += diff * diff
		}
		stddev := time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
		fmt.Printf("StdDev: %s\n", stddev)
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		count := stats.statusCodes[code].Load()
		fmt.Printf("  %d: %d\n", code, count)
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
