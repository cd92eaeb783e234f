// event-seeder posts synthetic WAF events to a running soclite server.
// A small pool of attacker IPs fires repeatedly so correlation runs
// produce multi-event tasks; the rest is background noise.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	serverURL   = flag.String("server", "http://localhost:8086", "soclite server URL")
	count       = flag.Int("count", 200, "Number of events to generate")
	interval    = flag.Duration("interval", 50*time.Millisecond, "Interval between events")
	attackerIPs = flag.Int("attackers", 5, "Size of the repeating attacker IP pool")
	attackRatio = flag.Float64("attack-ratio", 0.6, "Fraction of events from the attacker pool")
	timeSpread  = flag.Duration("time-spread", 10*time.Minute, "Spread event times over this period (0 for now)")
)

type createEventRequest struct {
	SourceIP   string    `json:"source_ip"`
	Country    string    `json:"country,omitempty"`
	URI        string    `json:"uri"`
	HTTPMethod string    `json:"http_method"`
	RuleName   string    `json:"rule_name"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Action     string    `json:"action"`
	EventTime  time.Time `json:"event_time"`
}

var wafRules = []string{
	"SQLi_BODY",
	"SQLi_QUERYARGUMENTS",
	"XSS_BODY",
	"XSS_QUERYARGUMENTS",
	"GenericRFI_BODY",
	"SizeRestrictions_BODY",
	"NoUserAgent_HEADER",
	"AWSManagedRulesKnownBadInputsRuleSet",
	"AWSManagedRulesAnonymousIpList",
	"RateLimitRule",
}

var attackURIs = []string{
	"/wp-login.php",
	"/admin/config.php",
	"/api/v1/users?id=1%20OR%201=1",
	"/search?q=%3Cscript%3Ealert(1)%3C/script%3E",
	"/.env",
	"/cgi-bin/test.cgi",
	"/index.php?page=../../etc/passwd",
	"/phpmyadmin/index.php",
}

var normalURIs = []string{
	"/",
	"/index.html",
	"/api/v1/products",
	"/api/v1/orders",
	"/static/app.js",
	"/images/logo.png",
	"/about",
	"/contact",
}

func main() {
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	attackers := make([]string, *attackerIPs)
	for i := range attackers {
		attackers[i] = gofakeit.IPv4Address()
	}

	log.Printf("Starting event seeder:")
	log.Printf("  Server: %s", *serverURL)
	log.Printf("  Event count: %d", *count)
	log.Printf("  Attacker pool: %v", attackers)
	log.Printf("  Attack ratio: %.2f", *attackRatio)

	client := &http.Client{Timeout: 10 * time.Second}

	successCount := 0
	failCount := 0

	for i := 0; i < *count; i++ {
		var event createEventRequest
		if rand.Float64() < *attackRatio {
			event = generateAttackEvent(attackers[rand.Intn(len(attackers))])
		} else {
			event = generateNoiseEvent()
		}

		if err := sendEvent(client, *serverURL, event); err != nil {
			log.Printf("Failed to send event: %v", err)
			failCount++
		} else {
			successCount++
			if successCount%50 == 0 {
				log.Printf("Progress: %d/%d events sent", successCount, *count)
			}
		}

		if *interval > 0 && i < *count-1 {
			time.Sleep(*interval)
		}
	}

	log.Printf("Seeding complete: %d sent, %d failed", successCount, failCount)
}

func eventTime() time.Time {
	now := time.Now().UTC()
	if *timeSpread > 0 {
		return now.Add(-time.Duration(rand.Int63n(int64(*timeSpread))))
	}
	return now
}

func generateAttackEvent(ip string) createEventRequest {
	methods := []string{"GET", "POST", "POST", "GET"}
	actions := []string{"BLOCK", "BLOCK", "BLOCK", "COUNT"}

	return createEventRequest{
		SourceIP:   ip,
		Country:    gofakeit.CountryAbr(),
		URI:        attackURIs[rand.Intn(len(attackURIs))],
		HTTPMethod: methods[rand.Intn(len(methods))],
		RuleName:   wafRules[rand.Intn(len(wafRules))],
		UserAgent:  gofakeit.UserAgent(),
		Action:     actions[rand.Intn(len(actions))],
		EventTime:  eventTime(),
	}
}

func generateNoiseEvent() createEventRequest {
	return createEventRequest{
		SourceIP:   gofakeit.IPv4Address(),
		Country:    gofakeit.CountryAbr(),
		URI:        normalURIs[rand.Intn(len(normalURIs))],
		HTTPMethod: "GET",
		RuleName:   wafRules[rand.Intn(len(wafRules))],
		UserAgent:  gofakeit.UserAgent(),
		Action:     "ALLOW",
		EventTime:  eventTime(),
	}
}

func sendEvent(client *http.Client, serverURL string, event createEventRequest) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/v1/events", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil
}
