package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/icodex/icodex/pkg/dex"
	"github.com/icodex/icodex/pkg/store"
)

// Well-formed base58 pubkeys (well-known program/mint addresses).
const (
	seller = "11111111111111111111111111111111"
	buyer  = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	mint   = "So11111111111111111111111111111111111111112"
	other  = "Stake11111111111111111111111111111111111111"
)

type stubOracle struct {
	sol bool
	spl bool
	err error
}

func (o *stubOracle) HasBalance(_ context.Context, _ string, asset dex.Asset, _ uint64) (bool, error) {
	if o.err != nil {
		return false, o.err
	}
	if asset.Mint == "" {
		return o.sol, nil
	}
	return o.spl, nil
}

func newTestServer(t *testing.T, oracle dex.BalanceOracle) *Server {
	t.Helper()
	fs := store.NewFileStore(filepath.Join(t.TempDir(), "order_book.json"))
	book, err := fs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	fills, err := store.OpenFillLog(t.TempDir())
	if err != nil {
		t.Fatalf("open fill log: %v", err)
	}
	t.Cleanup(func() { fills.Close() })

	gw := dex.NewGateway(book, fs, dex.NewMatchEngine(oracle), zap.NewNop().Sugar())
	gw.SetFillRecorder(fills)
	return NewServer(gw, fills, zap.NewNop().Sugar())
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func wantErrorKind(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d (%s), want %d", rec.Code, rec.Body.String(), status)
	}
	var e ErrorResponse
	decodeInto(t, rec, &e)
	if e.Error != kind {
		t.Errorf("error kind = %q, want %q", e.Error, kind)
	}
}

func TestLifecycleOverHTTP(t *testing.T) {
	oracle := &stubOracle{sol: true, spl: true}
	s := newTestServer(t, oracle)

	// Create.
	rec := doJSON(t, s, "POST", "/api/v1/orders", CreateOrderRequest{
		IcoID: "X", Amount: 100, Price: 1.5, Owner: seller,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created CreateOrderResponse
	decodeInto(t, rec, &created)
	if created.OrderID == "" {
		t.Fatalf("create returned no order_id")
	}

	// List shows the resting order.
	rec = doJSON(t, s, "GET", "/api/v1/icos/X/orders", nil)
	var listed OrdersResponse
	decodeInto(t, rec, &listed)
	if len(listed.Orders) != 1 || listed.Orders[0].Amount != 100 {
		t.Fatalf("orders = %+v", listed.Orders)
	}

	// Partial fill of 40.
	rec = doJSON(t, s, "POST", "/api/v1/orders/execute", ExecuteOrderRequest{
		IcoID: "X", OrderID: created.OrderID, Buyer: buyer,
		Amount: 40, TokenMint: mint, TokenDecimals: 9,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("execute status = %d: %s", rec.Code, rec.Body.String())
	}
	var fill dex.Fill
	decodeInto(t, rec, &fill)
	if fill.FilledAmount != 40 || fill.RemainingAmount != 60 {
		t.Fatalf("fill = %+v, want filled 40 remaining 60", fill)
	}
	if fill.Seller != seller || fill.Buyer != buyer {
		t.Errorf("fill parties = %s / %s", fill.Seller, fill.Buyer)
	}

	// Over-fill of 70 rejected, remaining stays 60.
	rec = doJSON(t, s, "POST", "/api/v1/orders/execute", ExecuteOrderRequest{
		IcoID: "X", OrderID: created.OrderID, Buyer: buyer,
		Amount: 70, TokenMint: mint, TokenDecimals: 9,
	})
	wantErrorKind(t, rec, http.StatusUnprocessableEntity, "insufficient_liquidity")

	// Buyer funds denied by oracle, remaining stays 60.
	oracle.sol = false
	rec = doJSON(t, s, "POST", "/api/v1/orders/execute", ExecuteOrderRequest{
		IcoID: "X", OrderID: created.OrderID, Buyer: buyer,
		Amount: 10, TokenMint: mint, TokenDecimals: 9,
	})
	wantErrorKind(t, rec, http.StatusUnprocessableEntity, "insufficient_funds")
	oracle.sol = true

	rec = doJSON(t, s, "GET", "/api/v1/icos/X/orders", nil)
	decodeInto(t, rec, &listed)
	if len(listed.Orders) != 1 || listed.Orders[0].Amount != 60 {
		t.Fatalf("orders after rejections = %+v, want one order of 60", listed.Orders)
	}

	// Cancel by the wrong owner rejected.
	rec = doJSON(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{
		IcoID: "X", OrderID: created.OrderID, Owner: other,
	})
	wantErrorKind(t, rec, http.StatusForbidden, "not_owner")

	// Cancel by the owner.
	rec = doJSON(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{
		IcoID: "X", OrderID: created.OrderID, Owner: seller,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d: %s", rec.Code, rec.Body.String())
	}
	var cancelled CancelOrderResponse
	decodeInto(t, rec, &cancelled)
	if !cancelled.Cancelled {
		t.Errorf("cancelled = false")
	}

	rec = doJSON(t, s, "GET", "/api/v1/icos/X/orders", nil)
	decodeInto(t, rec, &listed)
	if len(listed.Orders) != 0 {
		t.Fatalf("orders after cancel = %+v, want empty", listed.Orders)
	}

	// The fill journal kept the one committed fill.
	rec = doJSON(t, s, "GET", "/api/v1/icos/X/fills", nil)
	var fills FillsResponse
	decodeInto(t, rec, &fills)
	if len(fills.Fills) != 1 || fills.Fills[0].FilledAmount != 40 {
		t.Fatalf("fills = %+v", fills.Fills)
	}
}

func TestPubkeyValidation(t *testing.T) {
	s := newTestServer(t, &stubOracle{sol: true, spl: true})

	rec := doJSON(t, s, "POST", "/api/v1/orders", CreateOrderRequest{
		IcoID: "X", Amount: 100, Price: 1.5, Owner: "not-a-pubkey",
	})
	wantErrorKind(t, rec, http.StatusBadRequest, "validation")

	rec = doJSON(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{
		IcoID: "X", OrderID: "o1", Owner: "???",
	})
	wantErrorKind(t, rec, http.StatusBadRequest, "validation")

	rec = doJSON(t, s, "POST", "/api/v1/orders/execute", ExecuteOrderRequest{
		IcoID: "X", OrderID: "o1", Buyer: buyer, Amount: 1,
		TokenMint: "bogus", TokenDecimals: 0,
	})
	wantErrorKind(t, rec, http.StatusBadRequest, "validation")
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t, &stubOracle{sol: true, spl: true})

	// Unknown order.
	rec := doJSON(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{
		IcoID: "X", OrderID: "nope", Owner: seller,
	})
	wantErrorKind(t, rec, http.StatusNotFound, "not_found")

	// Non-positive create amount.
	rec = doJSON(t, s, "POST", "/api/v1/orders", CreateOrderRequest{
		IcoID: "X", Amount: -1, Price: 1.5, Owner: seller,
	})
	wantErrorKind(t, rec, http.StatusBadRequest, "validation")

	// Malformed body.
	req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	wantErrorKind(t, rr, http.StatusBadRequest, "validation")
}

func TestOracleDownIs503(t *testing.T) {
	s := newTestServer(t, &stubOracle{err: fmt.Errorf("connection refused")})

	rec := doJSON(t, s, "POST", "/api/v1/orders", CreateOrderRequest{
		IcoID: "X", Amount: 100, Price: 1.5, Owner: seller,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var created CreateOrderResponse
	decodeInto(t, rec, &created)

	rec = doJSON(t, s, "POST", "/api/v1/orders/execute", ExecuteOrderRequest{
		IcoID: "X", OrderID: created.OrderID, Buyer: buyer,
		Amount: 40, TokenMint: mint, TokenDecimals: 9,
	})
	wantErrorKind(t, rec, http.StatusServiceUnavailable, "oracle_unavailable")
}

func TestGetOrdersLimits(t *testing.T) {
	s := newTestServer(t, &stubOracle{})

	for i := 0; i < 3; i++ {
		rec := doJSON(t, s, "POST", "/api/v1/orders", CreateOrderRequest{
			IcoID: "X", Amount: int64(10 * (i + 1)), Price: float64(3 - i), Owner: seller,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d: %d", i, rec.Code)
		}
	}

	var listed OrdersResponse
	rec := doJSON(t, s, "GET", "/api/v1/icos/X/orders?limit=2", nil)
	decodeInto(t, rec, &listed)
	if len(listed.Orders) != 2 {
		t.Errorf("limit=2 returned %d orders", len(listed.Orders))
	}

	rec = doJSON(t, s, "GET", "/api/v1/icos/X/orders?limit=0", nil)
	decodeInto(t, rec, &listed)
	if len(listed.Orders) != 0 {
		t.Errorf("limit=0 returned %d orders", len(listed.Orders))
	}

	rec = doJSON(t, s, "GET", "/api/v1/icos/unknown/orders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown ico status = %d", rec.Code)
	}
	decodeInto(t, rec, &listed)
	if len(listed.Orders) != 0 {
		t.Errorf("unknown ico returned %d orders", len(listed.Orders))
	}

	rec = doJSON(t, s, "GET", "/api/v1/icos/X/orders?limit=abc", nil)
	wantErrorKind(t, rec, http.StatusBadRequest, "validation")

	// Price sort is an explicit opt-in.
	rec = doJSON(t, s, "GET", "/api/v1/icos/X/orders?sort=price", nil)
	decodeInto(t, rec, &listed)
	if len(listed.Orders) != 3 || listed.Orders[0].Price != 1.0 {
		t.Errorf("sort=price: %+v", listed.Orders)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubOracle{})
	rec := doJSON(t, s, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}
