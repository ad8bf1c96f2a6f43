package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
)

// TransferRequest describes one outbound bank transfer.
type TransferRequest struct {
	TravelerID  string          `json:"traveler_id"`
	Amount      decimal.Decimal `json:"amount"`
	BankDetails string          `json:"bank_details"`
}

type TransferResult struct {
	TransactionID string `json:"transaction_id"`
}

// Gateway is the external payment provider. Implementations must honor
// ctx cancellation; callers set a finite deadline.
type Gateway interface {
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
}

type HTTPGateway struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		client:  &http.Client{},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (g *HTTPGateway) Transfer(ctx context.Context, treq TransferRequest) (TransferResult, error) {
	b, err := json.Marshal(treq)
	if err != nil {
		return TransferResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transfers", bytes.NewReader(b))
	if err != nil {
		return TransferResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return TransferResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return TransferResult{}, fmt.Errorf("gateway transfer: status %d: %s", resp.StatusCode, string(body))
	}

	var res TransferResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return TransferResult{}, err
	}
	if res.TransactionID == "" {
		return TransferResult{}, fmt.Errorf("gateway transfer: empty transaction id")
	}
	return res, nil
}
