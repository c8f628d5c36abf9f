// Connectivity probe for the task store backends. Pings whichever backend
// the configuration selects, so a deploy can be checked before the server
// starts taking uploads.
//
// Usage:
//
//	go run cmd/test-db/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/speechcare/analysis-service/config"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Store.Driver {
	case "mongo":
		pingMongo(ctx, cfg.Store)
	case "postgres":
		pingPostgres(cfg.Store)
	default:
		fmt.Printf("Store driver %q needs no connectivity check\n", cfg.Store.Driver)
	}
}

func pingMongo(ctx context.Context, cfg config.StoreConfig) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		fmt.Println("Error opening connection:", err)
		os.Exit(1)
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		fmt.Println("Ping error:", err)
		os.Exit(1)
	}

	fmt.Printf("Connection successful: %s/%s\n", cfg.MongoDatabase, cfg.MongoCollection)
}

func pingPostgres(cfg config.StoreConfig) {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		fmt.Println("Error opening connection:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Println("Ping error:", err)
		os.Exit(1)
	}

	fmt.Println("Connection successful")
}
