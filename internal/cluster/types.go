package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NodeInfo identifies one process of a sort group.
// Rank is -1 until the coordinator assigns one.
type NodeInfo struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
	Rank int    `json:"rank"`
}

type RegisterRequest struct {
	Node NodeInfo `json:"node"`
}

type RegisterResponse struct {
	Rank int `json:"rank"`
	Size int `json:"size"`
}

// StartRequest is broadcast by the coordinator once every rank is registered.
// Peers is ordered by rank.
type StartRequest struct {
	JobID    string     `json:"job_id"`
	Peers    []NodeInfo `json:"peers"`
	Total    int        `json:"total"`
	Strategy string     `json:"strategy"`
	Root     int        `json:"root"`
	Seed     int64      `json:"seed"`
	MaxKey   int64      `json:"max_key"`
}

// Envelope carries one point-to-point message between ranks.
type Envelope struct {
	From int     `json:"from"`
	Tag  int     `json:"tag"`
	Keys []int64 `json:"keys"`
}

// ResultReport is what a rank tells the coordinator after its pipeline ends.
// Sums wrap on overflow; they are only compared with each other.
type ResultReport struct {
	JobID      string  `json:"job_id"`
	NodeID     string  `json:"node_id"`
	Rank       int     `json:"rank"`
	InputCount int     `json:"input_count"`
	InputSum   int64   `json:"input_sum"`
	Count      int     `json:"count"`
	Sum        int64   `json:"sum"`
	Min        int64   `json:"min"`
	Max        int64   `json:"max"`
	Sorted     bool    `json:"sorted"`
	Elapsed    float64 `json:"elapsed_seconds"`
	Err        string  `json:"err,omitempty"`
}

type AbortRequest struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason"`
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func PostJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
