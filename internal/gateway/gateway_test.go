package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))

		var req TransferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "traveler-1", req.TravelerID)
		assert.True(t, req.Amount.Equal(decimal.RequireFromString("180.00")))

		json.NewEncoder(w).Encode(TransferResult{TransactionID: "txn-abc"})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "secret-key")
	res, err := gw.Transfer(context.Background(), TransferRequest{
		TravelerID:  "traveler-1",
		Amount:      decimal.RequireFromString("180.00"),
		BankDetails: "IBAN DE00 1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "txn-abc", res.TransactionID)
}

func TestTransferNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient provider funds", http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "k")
	_, err := gw.Transfer(context.Background(), TransferRequest{TravelerID: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "insufficient provider funds")
}

func TestTransferEmptyTransactionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, "k")
	_, err := gw.Transfer(context.Background(), TransferRequest{TravelerID: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty transaction id")
}

func TestTransferHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	gw := NewHTTPGateway(srv.URL, "k")
	_, err := gw.Transfer(ctx, TransferRequest{TravelerID: "t"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
