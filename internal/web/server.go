package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/stratavault/svm/internal/config"
	"github.com/stratavault/svm/internal/engine"
	"github.com/stratavault/svm/internal/logger"
	"github.com/stratavault/svm/internal/state"
	"github.com/stratavault/svm/internal/token"
	"github.com/stratavault/svm/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the pool operations and audit data over HTTP.
type WebServer struct {
	router *mux.Router
	engine *engine.Engine
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, eng *engine.Engine) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		engine: eng,
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/rebalance", ws.handleRebalance).Methods("POST")
	api.HandleFunc("/strategies", ws.handleAddStrategy).Methods("POST")
	api.HandleFunc("/strategies", ws.handleGetStrategies).Methods("GET")
	api.HandleFunc("/strategies/{index}", ws.handleRemoveStrategy).Methods("DELETE")
	api.HandleFunc("/pool/summary", ws.handleGetPoolSummary).Methods("GET")
	api.HandleFunc("/markets", ws.handleGetMarkets).Methods("GET")
	api.HandleFunc("/receipts", ws.handleGetReceipts).Methods("GET")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// depositRequest is the payload for POST /api/deposit.
type depositRequest struct {
	Caller   string `json:"caller"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver"`
}

// withdrawRequest is the payload for POST /api/withdraw.
type withdrawRequest struct {
	Caller   string `json:"caller"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`
}

// rebalanceRequest is the payload for POST /api/rebalance.
type rebalanceRequest struct {
	Caller    string `json:"caller"`
	FromIndex int    `json:"from_index"`
	ToIndex   int    `json:"to_index"`
	Amount    string `json:"amount"`
}

// addStrategyRequest is the payload for POST /api/strategies.
type addStrategyRequest struct {
	Caller string `json:"caller"`
	Market string `json:"market"`
}

// handleDeposit executes a deposit on behalf of the calling account.
func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	amount, ok := sdkmath.NewIntFromString(req.Amount)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	minted, err := ws.engine.Deposit(token.Address(req.Caller), amount, token.Address(req.Receiver))
	if err != nil {
		webLogger.Error().Err(err).Msg("Deposit failed")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"shares_minted": minted.String(),
	})
}

// handleWithdraw executes a withdrawal on behalf of the calling account.
func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	amount, ok := sdkmath.NewIntFromString(req.Amount)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	owner := req.Owner
	if owner == "" {
		owner = req.Caller
	}

	burned, err := ws.engine.Withdraw(token.Address(req.Caller), amount, token.Address(req.Receiver), token.Address(owner))
	if err != nil {
		webLogger.Error().Err(err).Msg("Withdraw failed")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"shares_burned": burned.String(),
	})
}

// handleRebalance moves capital between strategies. Operator only; the pool
// enforces the authority check.
func (ws *WebServer) handleRebalance(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	amount, ok := sdkmath.NewIntFromString(req.Amount)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	if err := ws.engine.Rebalance(token.Address(req.Caller), req.FromIndex, req.ToIndex, amount); err != nil {
		webLogger.Error().Err(err).Msg("Rebalance failed")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"from_index": req.FromIndex,
		"to_index":   req.ToIndex,
		"amount":     amount.String(),
	})
}

// handleAddStrategy registers a new strategy over a known market.
func (ws *WebServer) handleAddStrategy(w http.ResponseWriter, r *http.Request) {
	var req addStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	index, err := ws.engine.AddStrategy(token.Address(req.Caller), req.Market)
	if err != nil {
		webLogger.Error().Err(err).Str("market", req.Market).Msg("Add strategy failed")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"index":  index,
		"market": req.Market,
	})
}

// handleRemoveStrategy deactivates a strategy by index. The force query
// parameter allows deactivating an adapter that still holds assets.
func (ws *WebServer) handleRemoveStrategy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid strategy index")
		return
	}
	force := r.URL.Query().Get("force") == "true"
	caller := r.URL.Query().Get("caller")

	if err := ws.engine.RemoveStrategy(token.Address(caller), index, force); err != nil {
		webLogger.Error().Err(err).Int("index", index).Msg("Remove strategy failed")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"index":  index,
		"forced": force,
	})
}

// handleGetStrategies returns the registry in index order.
func (ws *WebServer) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	views := ws.engine.Pool().Strategies()

	strategies := make([]map[string]interface{}, len(views))
	for i, v := range views {
		strategies[i] = map[string]interface{}{
			"index":        v.Index,
			"active":       v.Active,
			"total_assets": v.TotalAssets.String(),
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategies": strategies,
		"count":      len(strategies),
	})
}

// handleGetPoolSummary returns the pool's current accounting state.
func (ws *WebServer) handleGetPoolSummary(w http.ResponseWriter, r *http.Request) {
	p := ws.engine.Pool()

	totalAssets := p.TotalAssets()
	displayAssets, err := utils.IntToDisplay(totalAssets, config.AssetDecimals)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to convert total assets for display")
		displayAssets = 0
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"asset":                string(p.Asset()),
		"total_assets":         totalAssets.String(),
		"total_assets_display": displayAssets,
		"total_shares":         p.TotalShares().String(),
		"idle_balance":         p.IdleBalance().String(),
		"num_strategies":       p.NumStrategies(),
		"timestamp":            time.Now().UTC(),
	})
}

// handleGetMarkets lists the markets strategies can be created over.
func (ws *WebServer) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"markets": ws.engine.Markets(),
	})
}

// handleGetReceipts returns recent operation receipts.
func (ws *WebServer) handleGetReceipts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	receipts, err := state.GetRecentReceipts(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve receipts")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
		"limit":    limit,
	})
}

// handleGetSnapshots returns recent pool snapshots.
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	})
}

// handleHealth returns comprehensive server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Get runtime memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	// Get database connection status
	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	overallStatus := "OK"
	if hasErrors {
		overallStatus = "DEGRADED"
	}

	p := ws.engine.Pool()
	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "svm-strategy-vault-manager",
			"version": "1.0.0",
		},
		"pool_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"total_assets":     p.TotalAssets().String(),
			"total_shares":     p.TotalShares().String(),
			"num_strategies":   p.NumStrategies(),
		},
	}

	statusCode := http.StatusOK
	if hasErrors {
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
