package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratavault/svm/internal/engine"
	"github.com/stratavault/svm/internal/market"
	"github.com/stratavault/svm/internal/pool"
	"github.com/stratavault/svm/internal/strategy"
	"github.com/stratavault/svm/internal/token"
	"github.com/stratavault/svm/internal/types"
)

const (
	testOperator = "operator"
	testCustody  = token.Address("pool/custody")
	testUser     = "alice"
)

// nopRecorder satisfies engine.Recorder for handler tests; nothing persists.
type nopRecorder struct{}

func (nopRecorder) SaveOperationReceipt(types.OperationReceipt) (int64, error) { return 0, nil }

func (nopRecorder) SavePoolSnapshot(types.PoolSnapshot) (int64, error) { return 0, nil }

func newTestServer(t *testing.T) (*WebServer, *token.Token) {
	t.Helper()

	asset := token.New("asset/usdc", "USDC", 6)
	lendingMkt := market.NewSimLendingMarket("markets/lending", asset)

	p, err := pool.New(pool.Config{
		Asset:       asset,
		Custody:     testCustody,
		Operator:    testOperator,
		ShareSymbol: "svUSDC",
	})
	require.NoError(t, err)

	eng, err := engine.New(engine.Config{Pool: p, Recorder: nopRecorder{}})
	require.NoError(t, err)
	require.NoError(t, eng.RegisterMarket("sim-lending", func() (strategy.Strategy, error) {
		return strategy.NewLendingAdapter("strategies/lending-0", asset, lendingMkt)
	}))

	return NewWebServer("0", eng), asset
}

func doJSON(t *testing.T, ws *WebServer, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	ws.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func fundUser(t *testing.T, asset *token.Token, amount int64) {
	t.Helper()
	require.NoError(t, asset.Mint(testUser, sdkmath.NewInt(amount)))
	require.NoError(t, asset.Approve(testUser, testCustody, token.MaxUint256))
}

func TestDepositAndWithdrawEndpoints(t *testing.T) {
	ws, asset := newTestServer(t)
	fundUser(t, asset, 1000)

	rec := doJSON(t, ws, http.MethodPost, "/api/strategies", map[string]string{
		"caller": testOperator,
		"market": "sim-lending",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("deposit mints shares", func(t *testing.T) {
		rec := doJSON(t, ws, http.MethodPost, "/api/deposit", map[string]string{
			"caller":   testUser,
			"amount":   "1000",
			"receiver": testUser,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1000", decodeBody(t, rec)["shares_minted"])
	})

	t.Run("malformed amount is a bad request", func(t *testing.T) {
		rec := doJSON(t, ws, http.MethodPost, "/api/deposit", map[string]string{
			"caller":   testUser,
			"amount":   "not-a-number",
			"receiver": testUser,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("pool rejection maps to unprocessable entity", func(t *testing.T) {
		rec := doJSON(t, ws, http.MethodPost, "/api/deposit", map[string]string{
			"caller":   testUser,
			"amount":   "0",
			"receiver": testUser,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["error"])
	})

	t.Run("withdraw defaults owner to caller", func(t *testing.T) {
		rec := doJSON(t, ws, http.MethodPost, "/api/withdraw", map[string]string{
			"caller":   testUser,
			"amount":   "400",
			"receiver": testUser,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "400", decodeBody(t, rec)["shares_burned"])
	})
}

func TestStrategyEndpoints(t *testing.T) {
	ws, asset := newTestServer(t)
	fundUser(t, asset, 1000)

	t.Run("add strategy returns the assigned index", func(t *testing.T) {
		rec := doJSON(t, ws, http.MethodPost, "/api/strategies", map[string]string{
			"caller": testOperator,
			"market": "sim-lending",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(0), decodeBody(t, rec)["index"])
	})

	t.Run("non-operator cannot add", func(t *testing.T) {
		rec := doJSON(t, ws, http.MethodPost, "/api/strategies", map[string]string{
			"caller": testUser,
			"market": "sim-lending",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("list reflects the registry", func(t *testing.T) {
		rec := doJSON(t, ws, http.MethodGet, "/api/strategies", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(1), body["count"])
	})

	t.Run("remove strategy honors the force flag", func(t *testing.T) {
		rec := doJSON(t, ws, http.MethodPost, "/api/deposit", map[string]string{
			"caller":   testUser,
			"amount":   "1000",
			"receiver": testUser,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		// Loaded strategy: a plain remove is refused.
		rec = doJSON(t, ws, http.MethodDelete, "/api/strategies/0?caller="+testOperator, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = doJSON(t, ws, http.MethodDelete, "/api/strategies/0?force=true&caller="+testOperator, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["forced"])
	})

	t.Run("markets endpoint lists registered markets", func(t *testing.T) {
		rec := doJSON(t, ws, http.MethodGet, "/api/markets", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []interface{}{"sim-lending"}, decodeBody(t, rec)["markets"])
	})
}

func TestPoolSummaryEndpoint(t *testing.T) {
	ws, asset := newTestServer(t)
	fundUser(t, asset, 500)

	rec := doJSON(t, ws, http.MethodPost, "/api/strategies", map[string]string{
		"caller": testOperator,
		"market": "sim-lending",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, ws, http.MethodPost, "/api/deposit", map[string]string{
		"caller":   testUser,
		"amount":   "500",
		"receiver": testUser,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, ws, http.MethodGet, "/api/pool/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "asset/usdc", body["asset"])
	assert.Equal(t, "500", body["total_assets"])
	assert.Equal(t, "500", body["total_shares"])
	assert.Equal(t, "0", body["idle_balance"])
	assert.Equal(t, float64(1), body["num_strategies"])
}

func TestRebalanceEndpoint(t *testing.T) {
	ws, asset := newTestServer(t)
	fundUser(t, asset, 100)

	rec := doJSON(t, ws, http.MethodPost, "/api/rebalance", map[string]interface{}{
		"caller":     testUser,
		"from_index": 0,
		"to_index":   1,
		"amount":     "100",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
