// Command vapidkeys prints a fresh VAPID key pair in .env form.
package main

import (
	"fmt"
	"log"

	"github.com/dionfirmansyah/yonsense/internal/services"
)

func main() {
	privateKey, publicKey, err := services.GenerateVAPIDKeys()
	if err != nil {
		log.Fatalf("failed to generate vapid keys: %v", err)
	}
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
}
