package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/harvester/export"
	"github.com/use-agent/harvester/models"
)

// client talks to a running harvester API.
type client struct {
	http   *http.Client
	apiURL string
	apiKey string
}

func main() {
	apiURL := os.Getenv("HARVEST_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("HARVEST_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "HARVEST_API_KEY is required")
		os.Exit(1)
	}
	c := &client{
		http:   &http.Client{Timeout: 30 * time.Second},
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
	}

	s := server.NewMCPServer(
		"harvester",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	harvestTool := mcp.NewTool("harvest_page",
		mcp.WithDescription("Harvest real-estate records from a page. A listing page is expanded into its item pages, which are visited in small concurrent batches; a detail page yields one record. Returns price, address, phone, surface area and rooms for every item."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The listing or detail page URL"),
		),
		mcp.WithBoolean("send_message",
			mcp.Description("Also submit the contact form on every item page (default: server setting)"),
		),
		mcp.WithNumber("batch_size",
			mcp.Description("Item pages processed concurrently (1-10, default: server setting; 1 is sequential)"),
		),
		mcp.WithString("format",
			mcp.Description("Result format: 'csv' (default), 'json' or 'txt'"),
			mcp.Enum("csv", "json", "txt"),
		),
	)
	s.AddTool(harvestTool, c.handleHarvest)

	statusTool := mcp.NewTool("harvest_status",
		mcp.WithDescription("Report the progress of the current or last harvesting run."),
	)
	s.AddTool(statusTool, c.handleStatus)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func (c *client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var e models.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error.Code != "" {
			return fmt.Errorf("[%s] %s", e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// pollState polls the state endpoint until the run id is no longer running
// or ctx is cancelled.
func (c *client) pollState(ctx context.Context, id string) (models.StateResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return models.StateResponse{}, ctx.Err()
		case <-ticker.C:
			var st models.StateResponse
			if err := c.do(ctx, http.MethodGet, "/api/v1/harvest/state", nil, &st); err != nil {
				return st, err
			}
			if st.State.ID != id {
				return st, fmt.Errorf("run %s was superseded by %s", id, st.State.ID)
			}
			if !st.State.IsRunning {
				return st, nil
			}
		}
	}
}

func (c *client) handleHarvest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	format, err := export.ParseFormat(request.GetString("format", "csv"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := models.HarvestRequest{
		URL:       url,
		BatchSize: request.GetInt("batch_size", 0),
	}
	if args := request.GetArguments(); args["send_message"] != nil {
		send := request.GetBool("send_message", false)
		req.SendMessage = &send
	}

	var started models.HarvestResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/harvest", req, &started); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("harvest request failed: %v", err)), nil
	}

	final, err := c.pollState(ctx, started.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("polling run %s failed: %v", started.ID, err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s: %s\n\n", final.State.ID, final.Summary)
	if err := export.Write(&sb, format, final.State.Records); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("format results: %v", err)), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var st models.StateResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/harvest/state", nil, &st); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
	}
	if st.State.ID == "" {
		return mcp.NewToolResultText(st.Summary), nil
	}

	text := fmt.Sprintf("Run %s (%s)\nStart: %s\nStatus: %s\nProgress: %d/%d targets, %d records\n%s",
		st.State.ID, runningLabel(st.State.IsRunning), st.State.StartURL, st.State.Status,
		st.State.ProcessedTargets, st.State.TotalTargets, len(st.State.Records), st.Summary)
	return mcp.NewToolResultText(text), nil
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "finished"
}
