// ruled/tools/event_stressor/main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisAddr string
	eventRate int
)

var commandPayloads = []string{
	"onboard project",
	"Code.refactor:Foo.swift",
	"Code.refactor:AppDelegate.swift",
	"Docs.generate:README",
	"start review",
	"ship it",
}

var filePayloads = []string{
	"Sources/App/Main.swift",
	"Sources/App/ContentView.swift",
	"Tests/AppTests/ParserTests.swift",
}

var lifecyclePayloads = []string{
	"session.start",
	"session.end",
	"project.open",
}

func init() {
	flag.StringVar(&redisAddr, "redis", "localhost:6379", "Redis address")
	flag.IntVar(&eventRate, "rate", 10, "Number of events per second")
	flag.Parse()
}

func main() {
	ctx := context.Background()

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	fmt.Printf("Connected to Redis at %s\n", redisAddr)
	fmt.Printf("Publishing events at a rate of %d per second\n", eventRate)

	ticker := time.NewTicker(time.Second / time.Duration(eventRate))
	defer ticker.Stop()

	for range ticker.C {
		kind, payload := randomEvent()
		msg := fmt.Sprintf("%s=%s", kind, payload)
		if err := rdb.Publish(ctx, kind, msg).Err(); err != nil {
			fmt.Printf("Failed to publish event: %v\n", err)
			continue
		}
		fmt.Printf("Published %s\n", msg)
	}
}

func randomEvent() (string, string) {
	switch rand.Intn(3) {
	case 0:
		return "command", commandPayloads[rand.Intn(len(commandPayloads))]
	case 1:
		return "file_change", filePayloads[rand.Intn(len(filePayloads))]
	default:
		return "lifecycle", lifecyclePayloads[rand.Intn(len(lifecyclePayloads))]
	}
}
