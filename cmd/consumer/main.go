package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/downfa11-org/duraq/pkg/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5555", "Broker address")
	consumerID := flag.String("id", "", "Consumer identity (random if empty)")
	follow := flag.Bool("follow", false, "Keep polling after the queue drains")
	interval := flag.Duration("interval", time.Second, "Poll interval in follow mode")
	flag.Parse()

	id := *consumerID
	if id == "" {
		id = client.NewConsumerID()
	}

	c := client.New(*addr)
	if err := c.Connect(); err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	defer c.Close()

	fmt.Printf("🔹 Consuming as %q\n", id)

	received := 0
	for {
		msg, ok, err := c.Pull(id)
		if err != nil {
			log.Fatalf("❌ Pull failed: %v", err)
		}
		if !ok {
			if !*follow {
				break
			}
			time.Sleep(*interval)
			continue
		}
		received++
		fmt.Println("received:", msg)
	}

	fmt.Printf("✅ Received %d message(s)\n", received)
}
