// README: Bench cases covering environment, visit lifecycle, route tracking, calendar, concurrency and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"fieldforce/internal/infra"
)

type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	rep         string
	raceRep     string
	doctorA     string
	doctorB     string
	clinicDoc   string
	visitID     string
	raceVisitID string
}

type Result struct {
	Status  Status
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:       cfg,
		httpc:     &http.Client{Timeout: 10 * time.Second},
		rep:       "bench-rep-" + cfg.RunID,
		raceRep:   "bench-race-rep-" + cfg.RunID,
		doctorA:   "bench-doc-a-" + cfg.RunID,
		doctorB:   "bench-doc-b-" + cfg.RunID,
		clinicDoc: "bench-doc-clinic-" + cfg.RunID,
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		if rc, err := infra.NewRedis(ctx, r.cfg.RedisAddr); err == nil {
			r.redis = rc
		} else {
			fmt.Printf("redis unavailable, live-position checks skipped: %v\n", err)
		}
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return fail("db not configured")
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return fail(err.Error())
			}
			return pass("")
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return fail("redis not configured")
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return fail(err.Error())
			}
			return pass("")
		}},
		{Name: "Migration: apply (optional)", Run: func(ctx context.Context, r *Runner) Result {
			if !r.cfg.ApplyMigration {
				return skip("apply-migration=false")
			}
			if r.db == nil {
				return fail("db not configured")
			}
			if err := infra.ApplySQLFile(ctx, r.db, r.cfg.MigrationPath); err != nil {
				return fail(err.Error())
			}
			return pass("")
		}},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
		}},
		{Name: "Seed: clinic membership", Run: seedClinic},

		{Name: "Assignment: upsert every weekday", Run: func(ctx context.Context, r *Runner) Result {
			for _, doc := range []string{r.doctorA, r.doctorB} {
				res := r.expect(ctx, http.MethodPut, "/api/assignments", map[string]any{
					"representative_id": r.rep,
					"doctor_id":         doc,
					"visit_days":        []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"},
					"products":          []string{"bench"},
				}, http.StatusOK, nil)
				if res.Status != StatusPass {
					return res
				}
			}
			return pass("2 assignments")
		}},
		{Name: "Assignment: unknown weekday -> 400", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPut, "/api/assignments", map[string]any{
				"representative_id": r.rep,
				"doctor_id":         r.doctorA,
				"visit_days":        []string{"funday"},
			}, http.StatusBadRequest, nil)
		}},

		{Name: "Visit: start scheduled visit", Run: func(ctx context.Context, r *Runner) Result {
			var out map[string]any
			res := r.expect(ctx, http.MethodPost, "/api/visits/start", map[string]string{
				"representative_id": r.rep, "doctor_id": r.doctorA,
			}, http.StatusOK, &out)
			if res.Status == StatusPass {
				r.visitID, _ = out["id"].(string)
				if out["status"] != "in_progress" {
					return fail(fmt.Sprintf("status=%v", out["status"]))
				}
			}
			return res
		}},
		{Name: "Visit: second active visit -> 409", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/visits/start", map[string]string{
				"representative_id": r.rep, "doctor_id": r.doctorB,
			}, http.StatusConflict, nil)
		}},
		{Name: "Visit: postpone without reason -> 400", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/visits/postpone", map[string]string{
				"representative_id": r.rep, "doctor_id": r.doctorB, "reason": "  ",
			}, http.StatusBadRequest, nil)
		}},
		{Name: "Route: push samples", Run: func(ctx context.Context, r *Runner) Result {
			if r.visitID == "" {
				return skip("no active visit")
			}
			return r.expect(ctx, http.MethodPost, "/api/visits/"+r.visitID+"/route", walk(30, time.Now().UTC()), http.StatusAccepted, nil)
		}},
		{Name: "Visit: end", Run: func(ctx context.Context, r *Runner) Result {
			if r.visitID == "" {
				return skip("no active visit")
			}
			return r.expect(ctx, http.MethodPost, "/api/visits/"+r.visitID+"/end", nil, http.StatusOK, nil)
		}},
		{Name: "Route: playback has points", Run: func(ctx context.Context, r *Runner) Result {
			if r.visitID == "" {
				return skip("no visit")
			}
			var out struct {
				Points []json.RawMessage `json:"points"`
			}
			res := r.expect(ctx, http.MethodGet, "/api/visits/"+r.visitID+"/route", nil, http.StatusOK, &out)
			if res.Status == StatusPass && len(out.Points) == 0 {
				return fail("no points persisted")
			}
			res.Note = fmt.Sprintf("points=%d", len(out.Points))
			return res
		}},
		{Name: "Route: live position published", Run: func(ctx context.Context, r *Runner) Result {
			res := r.expect(ctx, http.MethodGet, "/api/representatives/"+r.rep+"/position", nil, http.StatusOK, nil)
			if res.Status != StatusPass || r.redis == nil {
				return res
			}
			pos, err := r.redis.GeoPos(ctx, "route:live", r.rep).Result()
			if err != nil || len(pos) == 0 || pos[0] == nil {
				return fail("representative missing from redis geo set")
			}
			return res
		}},
		{Name: "Visit: postpone with reason", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/visits/postpone", map[string]string{
				"representative_id": r.rep, "doctor_id": r.doctorB, "reason": "clinic closed",
			}, http.StatusOK, nil)
		}},
		{Name: "Visit: instant visit in own clinic", Run: func(ctx context.Context, r *Runner) Result {
			var out map[string]any
			res := r.expect(ctx, http.MethodPost, "/api/visits/instant", map[string]string{
				"representative_id": r.rep, "doctor_id": r.clinicDoc,
			}, http.StatusCreated, &out)
			if id, _ := out["id"].(string); id != "" {
				r.expect(ctx, http.MethodPost, "/api/visits/"+id+"/end", nil, http.StatusOK, nil)
			}
			return res
		}},
		{Name: "Visit: instant visit outside clinic -> 403", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPost, "/api/visits/instant", map[string]string{
				"representative_id": r.rep, "doctor_id": "bench-stranger-" + r.cfg.RunID,
			}, http.StatusForbidden, nil)
		}},
		{Name: "Calendar: current week", Run: func(ctx context.Context, r *Runner) Result {
			var out struct {
				Days []json.RawMessage `json:"days"`
			}
			res := r.expect(ctx, http.MethodGet, "/api/representatives/"+r.rep+"/week", nil, http.StatusOK, &out)
			if res.Status == StatusPass && len(out.Days) != 7 {
				return fail(fmt.Sprintf("days=%d", len(out.Days)))
			}
			return res
		}},

		{Name: "Concurrency: one active visit per representative", Run: concurrentStarts},
		{Name: "Perf: route sample throughput", Run: perfRoutePush},
	}
}

func pass(note string) Result { return Result{Status: StatusPass, Note: note} }
func fail(note string) Result { return Result{Status: StatusFail, Note: note} }
func skip(note string) Result { return Result{Status: StatusSkip, Note: note} }

func (r *Runner) do(ctx context.Context, method, path string, body any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	return resp.StatusCode, payload, time.Since(start), err
}

// expect passes when the response status matches; out, when set, receives the body.
func (r *Runner) expect(ctx context.Context, method, path string, body any, want int, out any) Result {
	status, payload, latency, err := r.do(ctx, method, path, body)
	if err != nil {
		return fail(err.Error())
	}
	if status != want {
		return Result{Status: StatusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d body=%s", status, want, truncate(payload))}
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return Result{Status: StatusFail, Latency: latency, Note: "decode: " + err.Error()}
		}
	}
	return Result{Status: StatusPass, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return fail("db not configured")
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return fail(err.Error())
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return fail(err.Error())
		}
		if !exists {
			return fail("missing table: " + t)
		}
	}
	return pass(fmt.Sprintf("tables=%d", len(tables)))
}

func seedClinic(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return skip("db not configured")
	}
	clinic := "bench-clinic-" + r.cfg.RunID
	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO clinics (id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`, []any{clinic, "Bench clinic"}},
		{`INSERT INTO clinic_doctors (clinic_id, doctor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, []any{clinic, r.clinicDoc}},
		{`INSERT INTO representative_clinics (representative_id, clinic_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, []any{r.rep, clinic}},
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(ctx, s.sql, s.args...); err != nil {
			return fail(err.Error())
		}
	}
	return pass(clinic)
}

// concurrentStarts fires one start per doctor for the same representative;
// exactly one may win.
func concurrentStarts(ctx context.Context, r *Runner) Result {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succ      int
		conflicts int
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, payload, _, err := r.do(ctx, http.MethodPost, "/api/visits/start", map[string]string{
				"representative_id": r.raceRep,
				"doctor_id":         fmt.Sprintf("bench-race-doc-%d-%s", i, r.cfg.RunID),
			})
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case status == http.StatusOK:
				succ++
				var out map[string]any
				if json.Unmarshal(payload, &out) == nil {
					r.raceVisitID, _ = out["id"].(string)
				}
			case status == http.StatusConflict:
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d", succ, conflicts)
	if succ != 1 {
		return fail(note)
	}
	return pass(note)
}

func perfRoutePush(ctx context.Context, r *Runner) Result {
	if r.raceVisitID == "" {
		return skip("no active visit to push to")
	}
	path := "/api/visits/" + r.raceVisitID + "/route"
	end := time.Now().Add(r.cfg.Duration)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		count    int
		errCount int
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				status, _, _, err := r.do(ctx, http.MethodPost, path, walk(10, time.Now().UTC()))
				mu.Lock()
				if err != nil || status != http.StatusAccepted {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	r.do(ctx, http.MethodPost, "/api/visits/"+r.raceVisitID+"/end", nil)

	if count == 0 {
		return fail(fmt.Sprintf("no requests completed, errors=%d", errCount))
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return pass(fmt.Sprintf("rps=%.1f samples/s=%.1f errors=%d", rps, rps*10, errCount))
}

// walk returns n samples about 110 m apart heading north.
func walk(n int, start time.Time) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{
			"lat":         30.0 + float64(i)*0.001,
			"lng":         31.2,
			"recorded_at": start.Add(time.Duration(i) * 5 * time.Second).Format(time.RFC3339Nano),
		}
	}
	return out
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func truncate(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
