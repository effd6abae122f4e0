package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// extractRequest mirrors the prodrank API request model.
type extractRequest struct {
	HTML     string          `json:"html"`
	Geometry json.RawMessage `json:"geometry"`
	Viewport *viewport       `json:"viewport,omitempty"`
	Features []string        `json:"features,omitempty"`
	Top      int             `json:"top,omitempty"`
}

type viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// extractResponse mirrors the prodrank API response model.
type extractResponse struct {
	Success bool `json:"success"`
	Product *struct {
		Title string `json:"title"`
		Image string `json:"image"`
		Price string `json:"price"`
	} `json:"product"`
	Scores     map[string]float64 `json:"scores"`
	Misses     []string           `json:"misses"`
	Candidates map[string][]struct {
		Index int     `json:"index"`
		Tag   string  `json:"tag"`
		Value string  `json:"value"`
		Score float64 `json:"score"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type compareRequest struct {
	Feature  string `json:"feature"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type compareResponse struct {
	Success bool      `json:"success"`
	Match   bool      `json:"match"`
	Error   *apiError `json:"error"`
}

func main() {
	apiURL := os.Getenv("PRODRANK_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PRODRANK_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PRODRANK_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"prodrank",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	extractTool := mcp.NewTool("extract_product",
		mcp.WithDescription("Identify the product title, main image and price of a rendered product page. Needs the page markup and the layout geometry captured for every element."),
		mcp.WithString("html",
			mcp.Required(),
			mcp.Description("Rendered page markup (document.documentElement.outerHTML)"),
		),
		mcp.WithString("geometry",
			mcp.Required(),
			mcp.Description("JSON object mapping each element index, in document order, to {top, bottom, left, right, display, visibility, strikethrough}"),
		),
		mcp.WithNumber("viewport_width",
			mcp.Description("Viewport width the geometry was captured at (default: server setting)"),
		),
		mcp.WithNumber("viewport_height",
			mcp.Description("Viewport height the geometry was captured at (default: server setting)"),
		),
		mcp.WithString("feature",
			mcp.Description("Restrict extraction to one feature"),
			mcp.Enum("title", "image", "price"),
		),
		mcp.WithNumber("top",
			mcp.Description("Also list this many best-scored candidates per feature (default: 0, max: 50)"),
		),
	)
	s.AddTool(extractTool, handleExtract(apiURL, apiKey))

	compareTool := mcp.NewTool("compare_values",
		mcp.WithDescription("Check whether two values of a product feature are equivalent, e.g. '$1,299.00' and '1299' for price, or two image URLs differing only by query string."),
		mcp.WithString("feature",
			mcp.Required(),
			mcp.Enum("title", "image", "price"),
		),
		mcp.WithString("expected", mcp.Required()),
		mcp.WithString("actual", mcp.Required()),
	)
	s.AddTool(compareTool, handleCompare(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleExtract(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		html, err := request.RequireString("html")
		if err != nil {
			return mcp.NewToolResultError("html is required"), nil
		}
		geometry, err := request.RequireString("geometry")
		if err != nil {
			return mcp.NewToolResultError("geometry is required"), nil
		}
		if !json.Valid([]byte(geometry)) {
			return mcp.NewToolResultError("geometry must be a JSON object"), nil
		}

		args := request.GetArguments()
		reqBody := extractRequest{
			HTML:     html,
			Geometry: json.RawMessage(geometry),
			Top:      int(number(args, "top")),
		}
		if w, h := number(args, "viewport_width"), number(args, "viewport_height"); w > 0 && h > 0 {
			reqBody.Viewport = &viewport{Width: w, Height: h}
		}
		if f := request.GetString("feature", ""); f != "" {
			reqBody.Features = []string{f}
		}

		var resp extractResponse
		if err := post(ctx, client, apiURL+"/api/v1/extract", apiKey, reqBody, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(describe(resp.Error, "extraction failed")), nil
		}
		return mcp.NewToolResultText(formatExtract(&resp)), nil
	}
}

func handleCompare(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		feature, err := request.RequireString("feature")
		if err != nil {
			return mcp.NewToolResultError("feature is required"), nil
		}
		reqBody := compareRequest{
			Feature:  feature,
			Expected: request.GetString("expected", ""),
			Actual:   request.GetString("actual", ""),
		}

		var resp compareResponse
		if err := post(ctx, client, apiURL+"/api/v1/compare", apiKey, reqBody, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(describe(resp.Error, "comparison failed")), nil
		}
		if resp.Match {
			return mcp.NewToolResultText("match"), nil
		}
		return mcp.NewToolResultText("no match"), nil
	}
}

// post sends body as JSON and decodes the response into out. API errors
// are left in out for the caller to report.
func post(ctx context.Context, client *http.Client, url, apiKey string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("API request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %v", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %v", resp.StatusCode, err)
	}
	return nil
}

// number reads a numeric tool argument; JSON numbers arrive as float64.
func number(args map[string]any, key string) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return 0
}

func describe(e *apiError, fallback string) string {
	if e == nil {
		return fallback
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func formatExtract(resp *extractResponse) string {
	var b strings.Builder
	if p := resp.Product; p != nil {
		fmt.Fprintf(&b, "Title: %s\nImage: %s\nPrice: %s\n", p.Title, p.Image, p.Price)
	}
	if len(resp.Misses) > 0 {
		fmt.Fprintf(&b, "Not found: %s\n", strings.Join(resp.Misses, ", "))
	}

	features := make([]string, 0, len(resp.Candidates))
	for f := range resp.Candidates {
		features = append(features, f)
	}
	sort.Strings(features)
	for _, f := range features {
		fmt.Fprintf(&b, "\n%s candidates:\n", f)
		for _, c := range resp.Candidates[f] {
			fmt.Fprintf(&b, "  #%d <%s> %.4g %q\n", c.Index, c.Tag, c.Score, c.Value)
		}
	}
	return b.String()
}
