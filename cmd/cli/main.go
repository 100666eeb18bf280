package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/downfa11-org/duraq/pkg/client"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5555", "Broker address")
	flag.Parse()

	c := client.New(*addr)
	if err := c.Connect(); err != nil {
		fmt.Println("❌ Failed to connect:", err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Printf("🔹 Connected to %s. PUSH <message> | PULL <consumerId> | EXIT\n\n", *addr)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "EXIT") {
			break
		}

		token, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(token) {
		case "PUSH":
			if err := c.Push(arg); err != nil {
				fmt.Println("ERR", err)
				continue
			}
			fmt.Println("OK")
		case "PULL":
			msg, ok, err := c.Pull(arg)
			if err != nil {
				fmt.Println("ERR", err)
				continue
			}
			if !ok {
				fmt.Println("EMPTY")
				continue
			}
			fmt.Println("MSG", msg)
		default:
			fmt.Println("ERR unknown command:", token)
		}
	}
}
