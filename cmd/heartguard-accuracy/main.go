// heartguard-accuracy 查询告警服务的检测准确率
//
//	HEARTGUARD_TOKEN=... HEARTGUARD_ORG=org-1 heartguard-accuracy -start 2024-03-01T00:00:00Z -end 2024-03-08T00:00:00Z
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"heartguard-alerts/internal/accuracy"
	"heartguard-alerts/internal/client"
	"heartguard-alerts/internal/config"
	"heartguard-alerts/internal/domain"
	"heartguard-alerts/internal/lifecycle"
	"heartguard-alerts/internal/logger"

	"go.uber.org/zap"
)

func parseBound(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func main() {
	startFlag := flag.String("start", "", "window start (RFC3339), empty = unbounded")
	endFlag := flag.String("end", "", "window end (RFC3339), empty = unbounded")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewLogger(cfg.Log.Level, "console", "heartguard-accuracy")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	start, err := parseBound(*startFlag)
	if err != nil {
		log.Fatal("Invalid -start", zap.Error(err))
	}
	end, err := parseBound(*endFlag)
	if err != nil {
		log.Fatal("Invalid -end", zap.Error(err))
	}

	token := os.Getenv("HEARTGUARD_TOKEN")
	if token == "" {
		log.Fatal("HEARTGUARD_TOKEN is required")
	}

	c := client.New(cfg.Client.BaseURL, log,
		client.WithTimeout(cfg.Client.Timeout),
		client.WithRetry(cfg.Client.RetryCount, time.Second, 5*time.Second),
	)
	session := lifecycle.NewSession(token, os.Getenv("HEARTGUARD_ORG"))
	agg := accuracy.NewAggregator(c, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Client.Timeout*time.Duration(cfg.Client.RetryCount+1))
	defer cancel()

	stats, err := agg.Stats(ctx, session, domain.Window{Start: start, End: end})
	if err != nil {
		log.Fatal("Failed to fetch accuracy stats", zap.Error(err))
	}
	fmt.Printf("true positives:  %d\n", stats.TruePositives)
	fmt.Printf("false positives: %d\n", stats.FalsePositives)
	fmt.Printf("precision:       %.3f\n", stats.Precision())
}
