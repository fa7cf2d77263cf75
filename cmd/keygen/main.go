package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

func main() {
	// 48 random bytes comfortably clears the 32-byte HMAC minimum after
	// base64 encoding.
	secret := make([]byte, 48)
	if _, err := rand.Read(secret); err != nil {
		fmt.Printf("Failed to generate secret: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("--- COPY BELOW TO .env.local ---")
	fmt.Printf("JWT_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(secret))
	fmt.Println("--------------------------------")
}
