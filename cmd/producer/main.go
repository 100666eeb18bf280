package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/downfa11-org/duraq/pkg/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5555", "Broker address")
	count := flag.Int("count", 10, "Number of messages to push")
	prefix := flag.String("prefix", "message", "Message prefix")
	flag.Parse()

	c := client.New(*addr)
	if err := c.Connect(); err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	defer c.Close()

	for i := 0; i < *count; i++ {
		msg := fmt.Sprintf("%s-%d", *prefix, i)
		if err := c.Push(msg); err != nil {
			log.Fatalf("❌ Push %q failed: %v", msg, err)
		}
		fmt.Println("pushed:", msg)
	}

	fmt.Printf("✅ Pushed %d message(s)\n", *count)
}
