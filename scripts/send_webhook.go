//go:build ignore

package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/your-org/shopsphere-backend/internal/config"
	"github.com/your-org/shopsphere-backend/internal/domain/webhook"
)

func main() {
	body := []byte(`{"event":"order.paid","order_id":123}`)
	if len(os.Args) > 1 {
		body = []byte(os.Args[1])
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config:", err)
	}

	url := fmt.Sprintf("http://localhost:%s/api/v1/webhooks", cfg.Server.Port)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Webhook.Secret != "" {
		req.Header.Set(webhook.SignatureHeader, webhook.Sign(cfg.Webhook.Secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatal("Request failed:", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s %s\n", resp.Status, out)
}
