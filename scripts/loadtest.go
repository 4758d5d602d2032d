//go:build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseURL = "http://localhost:8080"
	baseLat = 12.9716
	baseLng = 77.5946
)

type Stats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalLatency    int64
	MaxLatency      int64
}

func main() {
	rand.Seed(time.Now().UnixNano())

	fmt.Println("RideBid Load Test")
	fmt.Println("=================")

	fmt.Println("\n1. Creating test accounts...")
	passengerIDs, driverIDs := createTestAccounts()
	if len(passengerIDs) == 0 || len(driverIDs) == 0 {
		log.Fatal("Failed to create test accounts")
	}
	fmt.Printf("Created %d passengers and %d drivers\n", len(passengerIDs), len(driverIDs))

	fmt.Println("\n2. Testing request creation (100 requests, 10 concurrent)...")
	requestIDs, stats := testRequestCreation(passengerIDs, 100, 10)
	printStats("Request Creation", stats)

	fmt.Println("\n3. Testing offer submission (20 drivers bidding on each request)...")
	stats = testOfferRush(requestIDs, driverIDs, 20)
	printStats("Offer Submission", stats)

	fmt.Println("\n4. Testing concurrent accepts (every request, 5 racing accepts)...")
	winners, conflicts := testAcceptRace(requestIDs, passengerIDs)
	fmt.Printf("\nAccept Race Results:\n")
	fmt.Printf("  Requests settled:   %d\n", winners)
	fmt.Printf("  Conflict responses: %d\n", conflicts)

	fmt.Println("\nLoad test completed!")
}

func createTestAccounts() ([]string, []string) {
	passengerIDs := make([]string, 0)
	driverIDs := make([]string, 0)

	for i := 0; i < 20; i++ {
		passenger := map[string]string{
			"name":  fmt.Sprintf("LoadTest Passenger %d", i),
			"email": fmt.Sprintf("lt-passenger-%d-%d@example.com", i, time.Now().UnixNano()),
			"phone": fmt.Sprintf("98%08d", rand.Intn(100000000)),
		}
		if id := postForID("/v1/passengers", passenger); id != "" {
			passengerIDs = append(passengerIDs, id)
		}
	}

	for i := 0; i < 50; i++ {
		driver := map[string]string{
			"name":           fmt.Sprintf("LoadTest Driver %d", i),
			"email":          fmt.Sprintf("lt-driver-%d-%d@example.com", i, time.Now().UnixNano()),
			"phone":          fmt.Sprintf("91%08d", rand.Intn(100000000)),
			"license_number": fmt.Sprintf("DL%07d", rand.Intn(10000000)),
		}
		if id := postForID("/v1/drivers", driver); id != "" {
			driverIDs = append(driverIDs, id)
		}
	}

	return passengerIDs, driverIDs
}

func postForID(path string, payload interface{}) string {
	body, _ := json.Marshal(payload)
	resp, err := http.Post(baseURL+path, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != 201 {
		io.Copy(io.Discard, resp.Body)
		return ""
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if id, ok := result["id"].(string); ok {
		return id
	}
	return ""
}

func testRequestCreation(passengerIDs []string, numRequests, concurrency int) ([]string, *Stats) {
	stats := &Stats{}
	var mu sync.Mutex
	requestIDs := make([]string, 0, numRequests)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(idx int, passengerID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			request := map[string]interface{}{
				"passenger_id": passengerID,
				"origin": map[string]float64{
					"lat": baseLat + (rand.Float64()-0.5)*0.1,
					"lng": baseLng + (rand.Float64()-0.5)*0.1,
				},
				"destination": map[string]float64{
					"lat": baseLat + (rand.Float64()-0.5)*0.1,
					"lng": baseLng + (rand.Float64()-0.5)*0.1,
				},
				"target_price":      100 + rand.Float64()*300,
				"seats_needed":      1 + rand.Intn(3),
				"departure_time":    time.Now().Add(24 * time.Hour).Format(time.RFC3339),
				"estimated_minutes": 20 + rand.Intn(40),
				"distance_km":       5 + rand.Float64()*20,
			}
			body, _ := json.Marshal(request)

			req, _ := http.NewRequest("POST", baseURL+"/v1/requests", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Idempotency-Key", fmt.Sprintf("load-test-request-%d-%d", idx, time.Now().UnixNano()))

			start := time.Now()
			resp, err := http.DefaultClient.Do(req)
			record(stats, start, err, resp, 201)

			if err == nil && resp.StatusCode == 201 {
				var result map[string]interface{}
				json.NewDecoder(resp.Body).Decode(&result)
				if id, ok := result["id"].(string); ok {
					mu.Lock()
					requestIDs = append(requestIDs, id)
					mu.Unlock()
				}
			}
			drain(resp)
		}(i, passengerIDs[rand.Intn(len(passengerIDs))])
	}

	wg.Wait()
	return requestIDs, stats
}

// testOfferRush has many drivers bid on the same requests at once. The
// server retries conflicting appends internally, so 201s and the odd
// 409 duplicate are both expected; 503s would mean retry exhaustion.
func testOfferRush(requestIDs, driverIDs []string, driversPerRequest int) *Stats {
	stats := &Stats{}
	var wg sync.WaitGroup

	for _, requestID := range requestIDs {
		for j := 0; j < driversPerRequest && j < len(driverIDs); j++ {
			wg.Add(1)

			go func(requestID, driverID string) {
				defer wg.Done()

				offer := map[string]interface{}{
					"driver_id":     driverID,
					"offered_price": 100 + rand.Float64()*300,
				}
				body, _ := json.Marshal(offer)

				start := time.Now()
				resp, err := http.Post(baseURL+"/v1/requests/"+requestID+"/offers", "application/json", bytes.NewBuffer(body))
				record(stats, start, err, resp, 201)
				drain(resp)
			}(requestID, driverIDs[j])
		}
	}

	wg.Wait()
	return stats
}

// testAcceptRace fires several concurrent accepts at each settled
// request. Exactly one should win per request; the rest must come back
// as 409 conflicts, never as double settlements.
func testAcceptRace(requestIDs, passengerIDs []string) (int64, int64) {
	var winners, conflicts int64
	var wg sync.WaitGroup

	for _, requestID := range requestIDs {
		// Fetch the request to learn its passenger and offers
		resp, err := http.Get(baseURL + "/v1/requests/" + requestID)
		if err != nil {
			continue
		}
		var request struct {
			PassengerID string `json:"passenger_id"`
			Offers      []struct {
				ID string `json:"id"`
			} `json:"offers"`
		}
		json.NewDecoder(resp.Body).Decode(&request)
		resp.Body.Close()

		if len(request.Offers) == 0 {
			continue
		}

		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(offerID string) {
				defer wg.Done()

				accept := map[string]string{
					"passenger_id": request.PassengerID,
					"offer_id":     offerID,
				}
				body, _ := json.Marshal(accept)

				resp, err := http.Post(baseURL+"/v1/requests/"+requestID+"/accept", "application/json", bytes.NewBuffer(body))
				if err != nil {
					return
				}
				switch resp.StatusCode {
				case 200:
					atomic.AddInt64(&winners, 1)
				case 409:
					atomic.AddInt64(&conflicts, 1)
				}
				drain(resp)
			}(request.Offers[rand.Intn(len(request.Offers))].ID)
		}
	}

	wg.Wait()
	return winners, conflicts
}

func record(stats *Stats, start time.Time, err error, resp *http.Response, wantStatus int) {
	latency := time.Since(start).Milliseconds()
	atomic.AddInt64(&stats.TotalRequests, 1)
	atomic.AddInt64(&stats.TotalLatency, latency)

	if err != nil || resp.StatusCode != wantStatus {
		atomic.AddInt64(&stats.FailedRequests, 1)
	} else {
		atomic.AddInt64(&stats.SuccessRequests, 1)
	}

	for {
		old := atomic.LoadInt64(&stats.MaxLatency)
		if latency <= old || atomic.CompareAndSwapInt64(&stats.MaxLatency, old, latency) {
			break
		}
	}
}

func drain(resp *http.Response) {
	if resp != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func printStats(name string, stats *Stats) {
	avgLatency := float64(0)
	if stats.TotalRequests > 0 {
		avgLatency = float64(stats.TotalLatency) / float64(stats.TotalRequests)
	}

	fmt.Printf("\n%s Results:\n", name)
	fmt.Printf("  Total Requests:   %d\n", stats.TotalRequests)
	fmt.Printf("  Successful:       %d\n", stats.SuccessRequests)
	fmt.Printf("  Failed:           %d\n", stats.FailedRequests)
	fmt.Printf("  Success Rate:     %.2f%%\n", float64(stats.SuccessRequests)/float64(stats.TotalRequests)*100)
	fmt.Printf("  Avg Latency:      %.2f ms\n", avgLatency)
	fmt.Printf("  Max Latency:      %d ms\n", stats.MaxLatency)
}
