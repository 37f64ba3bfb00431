//go:build ignore

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parkwatch/parking-backend/config"
	"github.com/parkwatch/parking-backend/services"
	"github.com/parkwatch/parking-backend/shared"
)

func main() {
	fmt.Printf("Parking Backend Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	healthScore := 0
	totalTests := 3

	cfg := config.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetRequestTimeout())
	defer cancel()

	// Test 1: Portal reachability
	fmt.Print("Portal endpoint: ")
	session, err := shared.NewPortalSession(shared.SessionConfig{
		BaseURL: cfg.PortalBaseURL,
		Timeout: cfg.GetRequestTimeout(),
	})
	if err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else {
		fmt.Println("OK")
		healthScore++
	}

	// Test 2: Landing page loads and yields session tokens
	fmt.Print("Landing page tokens: ")
	if session == nil {
		fmt.Println("SKIPPED")
	} else if page, err := session.GetPage(ctx); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else {
		hidden := services.ExtractHiddenFields(page)
		if hidden["__VIEWSTATE"] == "" {
			fmt.Println("FAILED (no __VIEWSTATE on landing page)")
		} else {
			fmt.Println("OK")
			healthScore++
		}
	}

	// Test 3: Full form field set is collectable
	fmt.Print("Search form fields: ")
	if session == nil {
		fmt.Println("SKIPPED")
	} else if page, err := session.GetPage(ctx); err != nil {
		fmt.Printf("FAILED (%v)\n", err)
	} else if fields := services.CollectFormFields(page); len(fields) == 0 {
		fmt.Println("FAILED (no named form controls found)")
	} else {
		fmt.Printf("OK (%d fields)\n", len(fields))
		healthScore++
	}

	fmt.Println(strings.Repeat("-", 50))
	healthPercent := float64(healthScore) / float64(totalTests) * 100

	switch {
	case healthScore == totalTests:
		fmt.Printf("SYSTEM HEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	case healthScore >= totalTests/2:
		fmt.Printf("SYSTEM DEGRADED: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	default:
		fmt.Printf("SYSTEM UNHEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	}
}
