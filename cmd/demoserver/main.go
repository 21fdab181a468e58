// Command demoserver starts a local stand-in for the remote full-scan service.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/raysh454/secboard/internal/demoserver"
	"github.com/raysh454/secboard/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	fmt.Println("===========================================")
	fmt.Println("   Secboard Demo Scan Service")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Point secboard at this server with:")
	fmt.Printf("  SECBOARD_API_BASE_URL=http://localhost:%d\n", cfg.Port)
	fmt.Println()
	fmt.Println("Scenarios (switch from the control panel):")
	fmt.Println("  - Pending polls before completion")
	fmt.Println("  - Failure at a given poll")
	fmt.Println("  - Scans that never complete (timeout)")
	fmt.Println("  - Rejected scan starts")
	fmt.Println("  - Latest-scan lookup on or off")
	fmt.Println()

	server := demoserver.NewDemoServer(cfg, logging.NewStdoutLogger("demoserver"))
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
