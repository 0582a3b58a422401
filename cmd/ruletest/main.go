// ruletest previews a candidate alert rule against recent events without
// persisting anything: the offline face of the engine's rule-testing mode,
// meant for checking a rule before enabling it.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-alert-engine/internal/alerts"
	"github.com/technosupport/ts-alert-engine/internal/data"
)

type ruleFile struct {
	Name             string                `yaml:"name"`
	Severity         string                `yaml:"severity"`
	CooldownSeconds  int                   `yaml:"cooldown_seconds"`
	DedupKeyTemplate string                `yaml:"dedup_key_template"`
	Channels         []string              `yaml:"channels"`
	Conditions       alerts.RuleConditions `yaml:"conditions"`
}

func main() {
	rulePath := flag.String("rule", "", "Path to a yaml rule definition")
	limit := flag.Int("limit", 50, "Number of recent events to test against")
	now := flag.String("now", "", "Evaluate schedules at this RFC3339 time instead of now")
	flag.Parse()

	if *rulePath == "" {
		log.Fatal("usage: ruletest -rule <file.yaml> [-limit N]")
	}

	raw, err := os.ReadFile(*rulePath)
	if err != nil {
		log.Fatalf("Read rule file: %v", err)
	}
	var rf ruleFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		log.Fatalf("Parse rule file: %v", err)
	}
	condJSON, err := json.Marshal(rf.Conditions)
	if err != nil {
		log.Fatalf("Encode conditions: %v", err)
	}

	rule := &data.AlertRule{
		ID:               uuid.New(),
		Name:             rf.Name,
		Enabled:          true,
		Severity:         data.Severity(rf.Severity),
		Conditions:       condJSON,
		DedupKeyTemplate: rf.DedupKeyTemplate,
		CooldownSeconds:  rf.CooldownSeconds,
		Channels:         rf.Channels,
	}
	if rule.Severity.Priority() < 0 {
		log.Fatalf("Unknown severity %q", rf.Severity)
	}

	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), host, port, os.Getenv("DB_NAME"))
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("DB open error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	eventRepo := data.EventModel{DB: db}

	events, err := eventRepo.ListRecent(ctx, *limit)
	if err != nil {
		log.Fatalf("List events: %v", err)
	}
	if len(events) == 0 {
		log.Println("No events to test against.")
		return
	}

	var at time.Time
	if *now != "" {
		at, err = time.Parse(time.RFC3339, *now)
		if err != nil {
			log.Fatalf("Bad -now value (want RFC3339): %v", err)
		}
	}

	engine := alerts.NewEngine(nil, eventRepo, nil, nil, nil)
	previews, err := engine.TestRuleAgainstEvents(ctx, rule, events, at)
	if err != nil {
		log.Fatalf("Rule test failed: %v", err)
	}

	matched := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tCAMERA\tRISK\tOBJECTS\tMATCH\tCONDITIONS")
	for _, p := range previews {
		risk := "-"
		if p.RiskScore != nil {
			risk = fmt.Sprintf("%d", *p.RiskScore)
		}
		match := "no"
		if p.Matches {
			match = "YES"
			matched++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(p.EventID), p.CameraID, risk,
			strings.Join(p.ObjectTypes, ","), match,
			strings.Join(p.MatchedConditions, "; "))
	}
	w.Flush()
	fmt.Printf("\n%d of %d events would have fired %q\n", matched, len(previews), rule.Name)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
