/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Create the consistency engine and API handler
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080, or PORT)
  -db         SQLite database path (default: ledger.db, or DATABASE_PATH)
              Use ":memory:" for in-memory database
  -log-level  zerolog level (default: info, or LOG_LEVEL)
  -seed       Insert demo accounts, debts, and transactions on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Run with in-memory database and demo data
  ./server -db=":memory:" -seed

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/fintrack/ledger-engine/api"
	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/logger"
	"github.com/fintrack/ledger-engine/store/sqlite"
)

func main() {
	// .env is optional; flags override environment.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "ledger.db"), "SQLite database path")
	logLevel := flag.String("log-level", envStr("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	seed := flag.Bool("seed", false, "insert demo data on startup")
	flag.Parse()

	log := logger.New(*logLevel)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Initialize engine and handler
	engine := ledger.NewEngine(store)
	handler := api.NewHandler(engine)

	if *seed {
		if err := seedDemoData(context.Background(), engine); err != nil {
			log.Warn().Err(err).Msg("failed to seed demo data")
		}
	}

	// Create router
	router := api.NewRouter(handler, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// seedDemoData inserts a demo owner with two accounts, a debt, and a few
// transactions so the API has something to show out of the box.
func seedDemoData(ctx context.Context, engine *ledger.Engine) error {
	const owner = "demo-user"

	checking := &ledger.Account{
		AccountNumber: "5550001111",
		FICode:        "004",
		OwnerID:       owner,
		DisplayName:   "Checking",
		Balance:       decimal.NewFromInt(10000),
	}
	savings := &ledger.Account{
		AccountNumber: "5550002222",
		FICode:        "014",
		OwnerID:       owner,
		DisplayName:   "Savings",
		Balance:       decimal.NewFromInt(25000),
	}
	if _, err := engine.CreateAccount(ctx, checking); err != nil {
		return err
	}
	if _, err := engine.CreateAccount(ctx, savings); err != nil {
		return err
	}

	debt, err := engine.CreateDebt(ctx, &ledger.Debt{
		OwnerID:           owner,
		Name:              "Car loan",
		FICode:            "004",
		LoanPrincipal:     decimal.NewFromInt(120000),
		LoanBalance:       decimal.NewFromInt(96000),
		TotalInstallments: 48,
	})
	if err != nil {
		return err
	}

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	demo := []ledger.CreateInput{
		{
			Datetime: yesterday,
			Category: ledger.CategoryIncome,
			Type:     "40(1)Salary",
			Amount:   decimal.NewFromInt(3000),
			Note:     "Monthly salary",
			Receiver: &ledger.AccountRef{AccountNumber: checking.AccountNumber, FICode: checking.FICode},
		},
		{
			Datetime: yesterday.Add(time.Hour),
			Category: ledger.CategoryExpense,
			Type:     "Groceries",
			Amount:   decimal.NewFromFloat(123.45),
			Note:     "Weekly shop",
			Sender:   &ledger.AccountRef{AccountNumber: checking.AccountNumber, FICode: checking.FICode},
		},
		{
			Datetime: yesterday.Add(2 * time.Hour),
			Category: ledger.CategoryTransfer,
			Type:     "Transfer",
			Amount:   decimal.NewFromInt(500),
			Sender:   &ledger.AccountRef{AccountNumber: checking.AccountNumber, FICode: checking.FICode},
			Receiver: &ledger.AccountRef{AccountNumber: savings.AccountNumber, FICode: savings.FICode},
		},
		{
			Datetime: yesterday.Add(3 * time.Hour),
			Category: ledger.CategoryExpense,
			Amount:   decimal.NewFromInt(2000),
			Note:     "Installment 25/48",
			Sender:   &ledger.AccountRef{AccountNumber: checking.AccountNumber, FICode: checking.FICode},
			DebtID:   debt.ID,
		},
	}
	for _, in := range demo {
		if _, err := engine.CreateTransaction(ctx, owner, in); err != nil {
			return err
		}
	}
	return nil
}
