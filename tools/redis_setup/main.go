// ruled/tools/redis_setup/main.go

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
)

var ctx = context.Background()

func main() {
	rdb := connectToRedis("localhost:6379")
	if err := verifyConnection(rdb); err != nil {
		fmt.Printf("Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	startCLI(rdb)
}

func connectToRedis(addr string) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return rdb
}

func verifyConnection(rdb *redis.Client) error {
	_, err := rdb.Ping(ctx).Result()
	if err == nil {
		fmt.Println("Connected to Redis")
	}
	return err
}

func startCLI(rdb *redis.Client) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Commands:")
	fmt.Println("  send <kind> <payload>   publish an event (kind: command|file_change|lifecycle)")
	fmt.Println("  triggers                show mirrored trigger history")
	fmt.Println("  exit")

	for {
		fmt.Print("> ")
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		if input == "exit" {
			break
		}
		if input == "triggers" {
			names, err := rdb.LRange(ctx, "ruled:triggers", 0, 19).Result()
			if err != nil {
				fmt.Printf("Error reading triggers: %v\n", err)
				continue
			}
			for _, name := range names {
				fmt.Println(name)
			}
			continue
		}

		parts := strings.SplitN(input, " ", 3)
		if len(parts) != 3 || parts[0] != "send" {
			fmt.Println("Unknown command")
			continue
		}

		kind, payload := parts[1], parts[2]
		msg := fmt.Sprintf("%s=%s", kind, payload)
		if err := rdb.Publish(ctx, kind, msg).Err(); err != nil {
			fmt.Printf("Error publishing event: %v\n", err)
			continue
		}
		fmt.Printf("Published %s\n", msg)
	}
}
