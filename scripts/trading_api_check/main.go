package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"pairs-core/pkg/config"
	"pairs-core/pkg/exchanges/bybit"
	"pairs-core/pkg/exchanges/common"
)

// trading_api_check exercises the wrapped Bybit v5 endpoints the trader uses.
//
// Usage (start on testnet or demo):
//
//   go run ./scripts/trading_api_check
//
// Environment (same as the trader):
//   BYBIT_API_KEY / BYBIT_API_SECRET / BYBIT_ENV
//
// Behaviour:
//   TRADING_CHECK_PLACE_ORDERS  (default "false")
//        false: server time, tickers and wallet balance only
//        true : also sends a market Buy then a market Sell of CHECK_QTY
//   CHECK_SYMBOL                (default first configured symbol)
//   CHECK_QTY                   (default "1")
//
// An order test fills when the account has margin. Keep it off until the
// read-only checks pass.

func main() {
	log.Println("=== Trading API check starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	placeOrders := getenv("TRADING_CHECK_PLACE_ORDERS", "false") == "true"
	symbol := getenv("CHECK_SYMBOL", "")
	if symbol == "" && len(cfg.Symbols) > 0 {
		symbol = cfg.Symbols[0]
	}
	qty, err := strconv.ParseFloat(getenv("CHECK_QTY", "1"), 64)
	if err != nil || qty <= 0 {
		log.Fatalf("invalid CHECK_QTY: %v", err)
	}

	client, err := bybit.NewClient(bybit.Config{
		APIKey:    cfg.BybitAPIKey,
		APISecret: cfg.BybitAPISecret,
		Env:       bybit.Env(cfg.BybitEnv),
	})
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	log.Printf("[%s] server time", cfg.BybitEnv)
	if ts, err := client.GetServerTime(ctx); err != nil {
		log.Printf("  ❌ %v", err)
	} else {
		log.Printf("  ✓ %d (local skew %dms)", ts, ts-time.Now().UnixMilli())
	}

	log.Printf("[%s] last prices", cfg.BybitEnv)
	for _, sym := range cfg.Symbols {
		price, err := client.LastPrice(ctx, sym)
		if err != nil {
			log.Printf("  ❌ %s: %v", sym, err)
			continue
		}
		log.Printf("  ✓ %s %.8f", sym, price)
	}

	log.Printf("[%s] unified wallet balance", cfg.BybitEnv)
	bal, err := client.AvailableBalance(ctx)
	if err != nil {
		log.Printf("  ❌ %v", err)
	} else {
		log.Printf("  ✓ available USDT %.4f", bal)
	}

	if !placeOrders {
		log.Println("order placement skipped (TRADING_CHECK_PLACE_ORDERS=false)")
		log.Println("=== Trading API check done ===")
		return
	}

	for _, side := range []common.Side{common.SideBuy, common.SideSell} {
		req := common.OrderRequest{
			Category: common.CategoryLinear,
			Symbol:   symbol,
			Side:     side,
			Type:     common.OrderTypeMarket,
			Qty:      qty,
			ClientID: uuid.NewString(),
		}
		res, err := client.SubmitOrder(ctx, req)
		switch {
		case err != nil:
			log.Printf("  ❌ %s %s qty=%.0f: %v", side, symbol, qty, err)
		case !res.Success():
			log.Printf("  ❌ %s %s qty=%.0f: retCode=%d %s", side, symbol, qty, res.RetCode, res.RetMsg)
		default:
			log.Printf("  ✓ %s %s qty=%.0f orderId=%s", side, symbol, qty, res.ExchangeOrderID)
		}
	}
	log.Println("=== Trading API check done ===")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
