package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/maastricht-university/alignment-qc/quality"
)

// --- Dashboard ---
type ReportResp struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type ReportReq struct {
	RunID  string          `json:"run_id"`
	Report *quality.Report `json:"report"`
}

// PostReport delivers a quality report to the dashboard at url.
func (h *HTTP) PostReport(ctx context.Context, url, runID string, rep *quality.Report) (*ReportResp, error) {
	var out ReportResp
	if err := h.post(ctx, endpoint(url, "/quality-report"), ReportReq{RunID: runID, Report: rep}, &out); err != nil {
		return nil, fmt.Errorf("dashboard report: %w", err)
	}
	return &out, nil
}

type ComparisonReq struct {
	First      string             `json:"first"`
	Second     string             `json:"second"`
	Comparison quality.Comparison `json:"comparison"`
}

// PostComparison delivers the result of comparing two reports.
func (h *HTTP) PostComparison(ctx context.Context, url string, req ComparisonReq) (*ReportResp, error) {
	var out ReportResp
	if err := h.post(ctx, endpoint(url, "/comparison"), req, &out); err != nil {
		return nil, fmt.Errorf("dashboard comparison: %w", err)
	}
	return &out, nil
}

func endpoint(base, path string) string { return strings.TrimSuffix(base, "/") + path }

func (h *HTTP) post(ctx context.Context, url string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	resp, err := h.c.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
