package seeder

import (
	"bytes"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/faultline-systems/faultline/internal/envelope"
)

// Runner posts generated envelopes to an ingest endpoint.
type Runner struct {
	config     *Config
	httpClient *http.Client
}

// NewRunner creates a seeder runner
func NewRunner(config *Config) *Runner {
	return &Runner{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Run executes the seeding process
func (r *Runner) Run() error {
	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("Starting envelope seeder:")
	log.Printf("  URL: %s", r.config.URL)
	log.Printf("  Project: %s", r.config.Project)
	log.Printf("  Envelope count: %d", r.config.Count)
	for _, s := range r.config.Scenarios {
		log.Printf("  Scenario %s: weight %d", s.Name, s.Weight)
	}

	successCount := 0
	failCount := 0

	for i := 0; i < r.config.Count; i++ {
		env := GenerateEnvelope(r.pickScenario())
		if err := r.send(env); err != nil {
			log.Printf("Failed to send envelope: %v", err)
			failCount++
		} else {
			successCount++
		}

		if r.config.Interval > 0 && i < r.config.Count-1 {
			time.Sleep(r.config.Interval)
		}
	}

	log.Printf("Seeding complete:")
	log.Printf("  Success: %d envelopes", successCount)
	log.Printf("  Failed: %d envelopes", failCount)

	return nil
}

// pickScenario selects a scenario name by configured weight.
func (r *Runner) pickScenario() string {
	total := 0
	for _, s := range r.config.Scenarios {
		total += s.Weight
	}

	n := rand.Intn(total)
	for _, s := range r.config.Scenarios {
		n -= s.Weight
		if n < 0 {
			return s.Name
		}
	}
	return ScenarioError
}

func (r *Runner) send(env *envelope.Envelope) error {
	body, err := envelope.Serialize(env)
	if err != nil {
		return fmt.Errorf("serialize envelope: %w", err)
	}

	url := fmt.Sprintf("%s/api/%s/envelope/", r.config.URL, r.config.Project)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-Sentry-Auth", fmt.Sprintf("Sentry sentry_key=%s, sentry_version=7", r.config.Key))
	req.Header.Set("Content-Type", "application/x-sentry-envelope")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}

	return nil
}
