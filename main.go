package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/chatlens/server/internal/analyzer/graph"
	"github.com/chatlens/server/internal/analyzer/model"
	"github.com/chatlens/server/internal/analyzer/repo"
	"github.com/chatlens/server/internal/core"
	logx "github.com/chatlens/server/pkg/logger"
	pkgredis "github.com/chatlens/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the analyzer
// example, sourced from environment variables (loaded from .env for
// local runs).
type AppConfig struct {
	Env string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Analyzer configs
	Planner    model.PlannerModelConfig
	Extraction model.ExtractionModelConfig
	Synthesis  model.SynthesisModelConfig
	Engine     model.EngineConfig
	Task       model.TaskConfig
}

func main() {
	fmt.Println("Testing Transcript Analysis Graph...")
	ctx := context.Background()
	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(envCfg.Env)})

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	fmt.Println("Connected to Redis successfully")

	ttl, err := time.ParseDuration(envCfg.Task.TTL)
	if err != nil {
		log.Fatalf("Invalid ANALYZER_TASK_TTL '%s': %v", envCfg.Task.TTL, err)
	}

	taskRepo := repo.NewRedisTaskRepository(rdb, ttl)

	cfg := graph.Config{
		APIKey:     envCfg.APIKey,
		BaseURL:    envCfg.BaseURL,
		Planner:    envCfg.Planner,
		Extraction: envCfg.Extraction,
		Synthesis:  envCfg.Synthesis,
		Engine:     envCfg.Engine,
		TaskRepo:   taskRepo,
	}

	runner, err := graph.BuildAnalysisGraph(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	transcript := sampleTranscript()
	conversationID := "demo-conversation-001"

	testQueries := []struct {
		description string
		query       string
	}{
		{
			description: "Decision lookup",
			query:       "What did the team decide about the launch date?",
		},
		{
			description: "Action items for one person",
			query:       "What tasks is Dana responsible for?",
		},
		{
			description: "Unanswerable question",
			query:       "What is the office wifi password?",
		},
	}

	for i, test := range testQueries {
		fmt.Printf("\nTest %d: %s\n", i+1, test.description)
		fmt.Printf("Query: %q\n", test.query)
		fmt.Println("Processing...")

		result, err := runner.Invoke(ctx, model.AnalysisInput{
			Transcript:     transcript,
			Query:          test.query,
			Background:     "Weekly product sync of a small software team.",
			ConversationID: conversationID,
		})
		if err != nil {
			log.Fatalf("Failed to invoke graph for test %d: %v", i+1, err)
		}

		fmt.Printf("Answer %d: %s\n", i+1, result.FinalAnswer)
		if result.Err != "" {
			fmt.Printf("Error %d: %s\n", i+1, result.Err)
		}
		fmt.Println("------------------------------------------------")

		// slight delay between tests for readability
		time.Sleep(500 * time.Millisecond)
	}

	tasks, err := taskRepo.ListTasks(ctx, conversationID)
	if err != nil {
		log.Printf("Warning: could not list tasks: %v", err)
	} else {
		fmt.Printf("\nRecorded %d task(s) for conversation %s:\n", len(tasks), conversationID)
		for _, t := range tasks {
			fmt.Printf("  %s  %-12s  segments=%d/%d\n", t.TaskID, t.Status, t.ProcessedSegment, t.TotalSegments)
		}
	}

	fmt.Println("All analysis runs completed.")
}

func sampleTranscript() []model.MessageRecord {
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	lines := []struct {
		sender  string
		content string
	}{
		{"Alex", "Morning all, quick sync on the launch."},
		{"Dana", "Backend migration finished last night, all green."},
		{"Alex", "Great. Are we still good for the 15th?"},
		{"Sam", "Marketing assets land on the 12th, so the 15th works."},
		{"Dana", "I still owe the rollback runbook, will have it by Friday."},
		{"Alex", "Then it's settled, we launch on the 15th."},
		{"Sam", "I'll draft the announcement and send it around for review."},
		{"Dana", "Also taking the on-call shift for launch week."},
	}

	out := make([]model.MessageRecord, 0, len(lines))
	for i, l := range lines {
		out = append(out, model.MessageRecord{
			ID:       fmt.Sprintf("m%03d", i+1),
			Sender:   l.sender,
			Content:  l.content,
			Time:     base.Add(time.Duration(i) * time.Minute).Format("2006-01-02 15:04:05"),
			SenderID: fmt.Sprintf("u-%s", l.sender),
		})
	}
	return out
}
