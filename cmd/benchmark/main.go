package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	accounts    int
	password    string
	replayRate  float64
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // idempotent replays
	success201    uint64 // purchases
	fail409       uint64 // item already taken or store conflict
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API base URL")
	flag.IntVar(&concurrency, "workers", 10, "number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "test duration")
	flag.StringVar(&workload, "workload", "uniform", "workload type: uniform | hotspot")
	flag.IntVar(&accounts, "accounts", 100, "number of seeded accounts to log in")
	flag.StringVar(&password, "password", os.Getenv("SEED_PASSWORD"), "password of the seeded accounts")
	flag.Float64Var(&replayRate, "replay", 0.05, "fraction of purchases re-sent with the previous idempotency key")
}

type session struct {
	token string
	id    uuid.UUID
}

type client struct {
	http *http.Client
}

func main() {
	flag.Parse()
	if accounts < 2 {
		log.Fatal("need at least 2 accounts")
	}
	if password == "" {
		log.Fatal("SEED_PASSWORD or -password is required")
	}

	c := &client{http: &http.Client{Timeout: 5 * time.Second}}
	sessions, err := c.loginAll(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("starting benchmark: %s | workers: %d | duration: %s", workload, concurrency, duration)
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var hot atomic.Pointer[uuid.UUID]
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return c.worker(gctx, sessions, &hot)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	printResults(time.Since(start))
}

func (c *client) loginAll(ctx context.Context) ([]session, error) {
	sessions := make([]session, 0, accounts)
	for i := 0; i < accounts; i++ {
		var out struct {
			Token   string `json:"token"`
			Account struct {
				ID uuid.UUID `json:"id"`
			} `json:"account"`
		}
		body := map[string]string{"email": fmt.Sprintf("seed-%04d@swapledger.local", i), "password": password}
		status, err := c.call(ctx, http.MethodPost, "/api/v1/auth/login", "", body, nil, &out)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("login seed account %d: status %d (run cmd/seeder first)", i, status)
		}
		sessions = append(sessions, session{token: out.Token, id: out.Account.ID})
	}
	return sessions, nil
}

// worker keeps listing and buying items until ctx expires. The uniform
// workload pairs random sellers and buyers; hotspot makes every worker race
// for one shared listing until it sells.
func (c *client) worker(ctx context.Context, sessions []session, hot *atomic.Pointer[uuid.UUID]) error {
	var (
		lastKey   string
		lastItem  uuid.UUID
		lastBuyer int
	)
	for ctx.Err() == nil {
		seller, buyer := pickPair(len(sessions))
		key := uuid.NewString()

		var itemID uuid.UUID
		switch {
		case lastKey != "" && rand.Float64() < replayRate:
			itemID, buyer, key = lastItem, lastBuyer, lastKey
		case workload == "hotspot":
			p := hot.Load()
			if p == nil {
				id, err := c.list(ctx, sessions[seller])
				if err != nil {
					continue
				}
				if !hot.CompareAndSwap(nil, &id) {
					continue
				}
				p = &id
			}
			itemID = *p
		default:
			id, err := c.list(ctx, sessions[seller])
			if err != nil {
				continue
			}
			itemID = id
		}

		status, err := c.call(ctx, http.MethodPost, "/api/v1/items/"+itemID.String()+"/purchase",
			sessions[buyer].token, map[string]any{"mode": "points", "points_used": 1},
			map[string]string{"Idempotency-Key": key}, nil)
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddUint64(&failOther, 1)
			}
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch status {
		case http.StatusCreated:
			atomic.AddUint64(&success201, 1)
			lastKey, lastItem, lastBuyer = key, itemID, buyer
			clearIfSold(hot, itemID)
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
			clearIfSold(hot, itemID)
		default:
			atomic.AddUint64(&failOther, 1)
		}
	}
	return nil
}

func clearIfSold(hot *atomic.Pointer[uuid.UUID], sold uuid.UUID) {
	if p := hot.Load(); p != nil && *p == sold {
		hot.CompareAndSwap(p, nil)
	}
}

func (c *client) list(ctx context.Context, s session) (uuid.UUID, error) {
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	body := map[string]any{
		"title":        "bench tee",
		"description":  "generated by the benchmark",
		"category":     "tops",
		"type":         "points",
		"size":         "m",
		"condition":    "good",
		"points_value": 1,
	}
	status, err := c.call(ctx, http.MethodPost, "/api/v1/items", s.token, body, nil, &out)
	if err != nil {
		return uuid.Nil, err
	}
	if status != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("list item: status %d", status)
	}
	return out.ID, nil
}

// call sends a JSON request and decodes the envelope's data into out when it
// is non-nil.
func (c *client) call(ctx context.Context, method, path, token string, body any, headers map[string]string, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, method, targetURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		env := struct {
			Data any `json:"data"`
		}{Data: out}
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func pickPair(n int) (int, int) {
	a := rand.IntN(n)
	b := rand.IntN(n)
	for a == b {
		b = rand.IntN(n)
	}
	return a, b
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	fErr := atomic.LoadUint64(&failOther)

	var abortRate float64
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]any{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  float64(total) / d.Seconds(),
		"success_created": s201,
		"success_replay":  s200,
		"aborts_conflict": f409,
		"abort_rate_pct":  abortRate,
		"errors":          fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(results)

	file, err := os.Create(fmt.Sprintf("results_%s.json", workload))
	if err != nil {
		log.Printf("save results: %v", err)
		return
	}
	defer file.Close()
	_ = json.NewEncoder(file).Encode(results)
}
