// mcpcheck is a diagnostic smoke test for the MCP server: it checks the
// health endpoint, fetches metrics for a probe pool, and verifies the metrics
// payload carries embedded price data. Exits 0 when all checks pass.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/poolmind/poolmind/internal/mcp"
	"github.com/poolmind/poolmind/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	probePool := os.Getenv("MCP_CHECK_POOL")
	if probePool == "" {
		probePool = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2" // SOL/USDC
	}

	client := mcp.NewClient(cfg.MCP, zap.NewNop().Sugar())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pass := color.New(color.FgGreen).PrintfFunc()
	fail := color.New(color.FgRed).PrintfFunc()

	failed := false

	if err := client.Health(ctx); err != nil {
		fail("✗ health check: %v\n", err)
		failed = true
	} else {
		pass("✓ health check ok (%s)\n", cfg.MCP.BaseURL)
	}

	var metrics json.RawMessage
	if !failed {
		metrics, err = client.GetPoolMetrics(ctx, probePool)
		if err != nil {
			fail("✗ pool metrics: %v\n", err)
			failed = true
		} else {
			pass("✓ pool metrics for %s (%d bytes)\n", probePool, len(metrics))
		}
	}

	if !failed {
		var payload struct {
			Price float64 `json:"price"`
		}
		if err := json.Unmarshal(metrics, &payload); err != nil || payload.Price <= 0 {
			fail("✗ price data missing from metrics payload\n")
			failed = true
		} else {
			pass("✓ embedded price data present (price=%.6f)\n", payload.Price)
		}
	}

	if failed {
		os.Exit(1)
	}
}
