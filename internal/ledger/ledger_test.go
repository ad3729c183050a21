package ledger

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"20", 20_000_000},
		{"12.5", 12_500_000},
		{"0.000001", 1},
		{".5", 500_000},
		{" 3 ", 3_000_000},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in, ADA)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []string{"", "-1", "0", "1.0000001", "abc", "1.2.3", "+5"} {
		_, err := ParseAmount(in, ADA)
		assert.Error(t, err, in)
	}

	_, err := ParseAmount("1", Currency("BTC"))
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "20", FormatAmount(20_000_000, ADA))
	assert.Equal(t, "12.5", FormatAmount(12_500_000, ADA))
	assert.Equal(t, "0.000001", FormatAmount(1, DJED))
	assert.Equal(t, "0", FormatAmount(0, ADA))
}

func TestLookupCurrency_CaseInsensitive(t *testing.T) {
	info, err := LookupCurrency("djed")
	require.NoError(t, err)
	assert.Equal(t, DJED, info.Code)
	assert.NotEmpty(t, info.Unit)
}

func TestPaymentValidate(t *testing.T) {
	ok := Payment{Amount: 1, Currency: ADA, Recipient: "addr1q"}
	require.NoError(t, ok.Validate())

	assert.Error(t, Payment{Amount: 0, Currency: ADA, Recipient: "addr1q"}.Validate())
	assert.Error(t, Payment{Amount: 1, Currency: "XYZ", Recipient: "addr1q"}.Validate())
	assert.Error(t, Payment{Amount: 1, Currency: ADA}.Validate())
}

func newBlockfrostServer(t *testing.T, h http.HandlerFunc) *Blockfrost {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewBlockfrost(srv.URL, "preprodTestKey", WithTxBuilder(PresignedTx{0x84, 0xa4}))
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Status
	}{
		{"not found is pending", http.StatusNotFound, `{"status_code":404,"error":"Not Found","message":"The requested component has not been found."}`, StatusPending},
		{"in block is confirmed", http.StatusOK, `{"hash":"tx123","block":"abc","block_height":100,"valid_contract":true}`, StatusConfirmed},
		{"invalid contract is failed", http.StatusOK, `{"hash":"tx123","block":"abc","block_height":100,"valid_contract":false}`, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bf := newBlockfrostServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/txs/tx123", r.URL.Path)
				assert.Equal(t, "preprodTestKey", r.Header.Get("project_id"))
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			got, err := bf.CheckStatus(context.Background(), "tx123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckStatus_ServerErrorIsError(t *testing.T) {
	bf := newBlockfrostServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"status_code":429,"error":"Project Over Limit","message":"Usage is over limit."}`)
	})

	_, err := bf.CheckStatus(context.Background(), "tx123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Usage is over limit")
}

func TestCheckStatus_HonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	bf := newBlockfrostServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := bf.CheckStatus(ctx, "tx123")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmit(t *testing.T) {
	bf := newBlockfrostServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tx/submit", r.URL.Path)
		assert.Equal(t, "application/cbor", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.True(t, bytes.Equal([]byte{0x84, 0xa4}, body))
		io.WriteString(w, `"d1662b24fa9fe985fc2dce47455df399cb2e31e1e1819339e885801cc3578908"`)
	})

	ref, err := bf.Submit(context.Background(), Payment{Amount: 20_000_000, Currency: ADA, Recipient: "addr1q"})
	require.NoError(t, err)
	assert.Equal(t, "d1662b24fa9fe985fc2dce47455df399cb2e31e1e1819339e885801cc3578908", ref)
}

func TestSubmit_Rejected(t *testing.T) {
	bf := newBlockfrostServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"status_code":400,"error":"Bad Request","message":"BadInputsUTxO"}`)
	})

	_, err := bf.Submit(context.Background(), Payment{Amount: 1, Currency: ADA, Recipient: "addr1q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BadInputsUTxO")
}

func TestSubmit_NoBuilder(t *testing.T) {
	bf := NewBlockfrost("http://127.0.0.1:0", "k")
	_, err := bf.Submit(context.Background(), Payment{Amount: 1, Currency: ADA, Recipient: "addr1q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no builder configured")
}

func TestSubmit_SignedTxBypassesBuilder(t *testing.T) {
	bf := newBlockfrostServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, bytes.Equal([]byte{0x84, 0x00, 0x01}, body))
		io.WriteString(w, `"abc123"`)
	})

	ref, err := bf.Submit(context.Background(), Payment{
		Amount:    5_000_000,
		Currency:  ADA,
		Recipient: "addr1q",
		SignedTx:  []byte{0x84, 0x00, 0x01},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", ref)
}

func TestBlockfrostBaseURL(t *testing.T) {
	u, err := BlockfrostBaseURL("Preprod")
	require.NoError(t, err)
	assert.Equal(t, "https://cardano-preprod.blockfrost.io/api/v0", u)

	_, err = BlockfrostBaseURL("moonnet")
	assert.Error(t, err)
}

func TestPaymentURI(t *testing.T) {
	uri, err := PaymentURI(Payment{Amount: 20_000_000, Currency: ADA, Recipient: "addr1qxy"})
	require.NoError(t, err)
	assert.Equal(t, "web+cardano:addr1qxy?amount=20", uri)

	uri, err = PaymentURI(Payment{Amount: 5, Currency: DJED, Recipient: "addr1qxy"})
	require.NoError(t, err)
	assert.Equal(t, "web+cardano:addr1qxy", uri)

	_, err = PaymentURI(Payment{})
	assert.Error(t, err)
}

func TestPaymentQR_IsPNG(t *testing.T) {
	png, err := PaymentQR(Payment{Amount: 1_000_000, Currency: ADA, Recipient: "addr1qxy"}, 128)
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
