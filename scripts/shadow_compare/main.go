package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// target is one request replayed against both deployments.
type target struct {
	Name     string `yaml:"name"`
	Method   string `yaml:"method"`
	Path     string `yaml:"path"`
	BodyFile string `yaml:"body_file"`
	Critical bool   `yaml:"critical"`
}

type config struct {
	Targets []target `yaml:"targets"`
}

type comparison struct {
	Target            target
	BaselineStatus    int
	CandidateStatus   int
	StatusMatch       bool
	BodyMatch         bool
	Error             error
	DurationCandidate time.Duration
	DurationBaseline  time.Duration
}

// Replays scheduling requests against a baseline and a candidate deployment
// and reports any difference in the response data. Volatile meta fields are
// ignored, so identical inputs must produce identical schedules.
func main() {
	var (
		candidateBase string
		baselineBase  string
		targetsPath   string
		token         string
		timeout       time.Duration
	)

	flag.StringVar(&candidateBase, "candidate-base", "http://localhost:8080/api/v1", "Candidate API base URL")
	flag.StringVar(&baselineBase, "baseline-base", "http://localhost:8081/api/v1", "Baseline API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.yaml"), "Path to YAML targets file")
	flag.StringVar(&token, "token", os.Getenv("OPSGRID_TOKEN"), "Bearer token sent to both deployments")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)

	baseDir := filepath.Dir(targetsPath)
	for _, t := range targets {
		comp := compareTarget(client, candidateBase, baselineBase, token, baseDir, t)
		if comp.Error != nil || !comp.StatusMatch || !comp.BodyMatch {
			if t.Critical || comp.Error != nil {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, candidateBase, baselineBase, token, baseDir string, tgt target) comparison {
	comp := comparison{Target: tgt}

	var body []byte
	if tgt.BodyFile != "" {
		path := tgt.BodyFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			comp.Error = fmt.Errorf("read body file: %w", err)
			return comp
		}
		body = raw
	}

	candResp, candDur, candErr := performRequest(client, candidateBase, token, tgt, body)
	baseResp, baseDur, baseErr := performRequest(client, baselineBase, token, tgt, body)
	comp.DurationCandidate = candDur
	comp.DurationBaseline = baseDur

	if candErr != nil {
		comp.Error = fmt.Errorf("candidate request failed: %w", candErr)
		return comp
	}
	defer candResp.Body.Close()
	if baseErr != nil {
		comp.Error = fmt.Errorf("baseline request failed: %w", baseErr)
		return comp
	}
	defer baseResp.Body.Close()

	comp.CandidateStatus = candResp.StatusCode
	comp.BaselineStatus = baseResp.StatusCode
	comp.StatusMatch = comp.CandidateStatus == comp.BaselineStatus

	candBody, err := io.ReadAll(candResp.Body)
	if err != nil {
		comp.Error = fmt.Errorf("read candidate body: %w", err)
		return comp
	}
	baseBody, err := io.ReadAll(baseResp.Body)
	if err != nil {
		comp.Error = fmt.Errorf("read baseline body: %w", err)
		return comp
	}

	comp.BodyMatch = bodiesEqual(candBody, baseBody)
	return comp
}

func performRequest(client *http.Client, base, token string, tgt target, body []byte) (*http.Response, time.Duration, error) {
	if client == nil {
		return nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodPost
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	return resp, time.Since(start), nil
}

// bodiesEqual compares the data and error members of two response envelopes.
func bodiesEqual(a, b []byte) bool {
	var aj, bj map[string]interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	delete(aj, "meta")
	delete(bj, "meta")

	var av, bv interface{} = aj, bj
	normalize(&av)
	normalize(&bv)
	return reflect.DeepEqual(av, bv)
}

func normalize(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			normalize(&v2)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(results []comparison) {
	fmt.Println("Schedule Shadow Compare Report")
	fmt.Println("==============================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s %s\n", status, res.Target.Name, res.Target.Method, res.Target.Path)
		fmt.Printf("  Candidate Status: %d (%s)\n", res.CandidateStatus, res.DurationCandidate)
		fmt.Printf("  Baseline Status: %d (%s)\n", res.BaselineStatus, res.DurationBaseline)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
}
