package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketpulse/market-scraper/internal/models"
)

// Client talks to the review analysis service over HTTP. The service is a
// black box; this side only shapes requests and responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// AnalyzeRequest is the payload sent for a batch of reviews.
type AnalyzeRequest struct {
	Marketplace string          `json:"marketplace"`
	ProductID   string          `json:"product_id"`
	Reviews     []ReviewPayload `json:"reviews"`
}

// ReviewPayload is one review as the analysis service expects it.
type ReviewPayload struct {
	Text   string `json:"text"`
	Rating int    `json:"rating"`
}

// Sentiment is the share of reviews per tone, in percent.
type Sentiment struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// AnalyzeResponse is the aggregated verdict for one review batch.
type AnalyzeResponse struct {
	Summary   string    `json:"summary"`
	Sentiment Sentiment `json:"sentiment"`
	Aspects   []string  `json:"aspects,omitempty"`
}

// HealthResponse represents the analysis service health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Message     string `json:"message,omitempty"`
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Analyze submits a review batch and returns the aggregated verdict.
func (c *Client) Analyze(ctx context.Context, marketplace, productID string, reviews []models.Review) (*AnalyzeResponse, error) {
	reqBody := AnalyzeRequest{
		Marketplace: marketplace,
		ProductID:   productID,
		Reviews:     make([]ReviewPayload, 0, len(reviews)),
	}
	for _, r := range reviews {
		reqBody.Reviews = append(reqBody.Reviews, ReviewPayload{Text: r.Text, Rating: r.Rating})
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/analyze", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("analysis service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// HealthCheck checks if the analysis service is reachable.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("analysis service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}
