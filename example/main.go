package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/paywatch/paywatch"
)

func main() {
	sessionID := flag.String("session-id", "", "reuse an existing session")
	stats := flag.Bool("stats", false, "print session statistics and exit")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Zero-config: creates paywatch.db automatically. The API key comes
	// from the environment; without one, aggregator lookups degrade to
	// "no match" instead of failing.
	engine, err := paywatch.New(paywatch.Config{
		APIKey: os.Getenv("PRESSREADER_API_KEY"),
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("Failed to initialize paywatch: %v", err)
	}
	defer engine.Close()

	// Production config (MySQL + Redis cache). Uncomment to use:
	/*
		mysqlStore, err := store.NewMySQLFromDSN("user:password@tcp(localhost:3306)/paywatch")
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		redisCache, err := store.NewRedisFromConfig(store.RedisConfig{Addr: "localhost:6379"})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		engine, err := paywatch.New(paywatch.Config{
			APIKey:   os.Getenv("PRESSREADER_API_KEY"),
			Sessions: mysqlStore,
			Matches:  mysqlStore,
			Activity: mysqlStore,
			Cache:    redisCache,
		})
	*/

	sid := *sessionID
	if sid == "" {
		sid, err = engine.CreateSession("")
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		fmt.Fprintf(os.Stderr, "session: %s\n", sid)
	}

	if *stats {
		report, err := engine.SessionStats(sid)
		if err != nil {
			log.Fatalf("Failed to load stats: %v", err)
		}
		printJSON(report)
		return
	}

	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: example [-session-id ID] [-stats] URL [URL...]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if len(urls) == 1 {
		result, err := engine.CheckArticle(ctx, urls[0], sid)
		if err != nil {
			log.Fatalf("Check failed: %v", err)
		}
		printJSON(result)
		return
	}

	printJSON(engine.BatchCheck(ctx, urls, sid))
}

func printJSON(v any) {
	encoded, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(encoded))
}
