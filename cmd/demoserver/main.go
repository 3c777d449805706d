// Command demoserver starts the QSSAGE phishing lab, a local site whose pages
// can be switched between benign and malicious variants.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/raysh454/qssage/internal/demoserver"
	"github.com/raysh454/qssage/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()

	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	fmt.Println("===========================================")
	fmt.Println("   QSSAGE Phishing Lab")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Every page starts benign. Arm a page from the control")
	fmt.Println("panel, then scan it with:")
	fmt.Printf("  qssage scan http://localhost:%d/login\n", cfg.Port)
	fmt.Println()
	fmt.Println("Scenarios:")
	fmt.Println("  /login   credential form posting to a foreign host")
	fmt.Println("  /promo   hidden iframes")
	fmt.Println("  /go      server redirect chain")
	fmt.Println("  /late    script redirect after the load event")
	fmt.Println("  /coupon  eval and base64-decoded markup")
	fmt.Println()

	lab := demoserver.NewDemoServer(cfg, logging.NewStdoutLogger("lab"))
	if err := lab.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
