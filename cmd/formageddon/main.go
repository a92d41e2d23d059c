package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"formageddon/internal/application/port/input"
	"formageddon/internal/di"
	"formageddon/internal/domain/entity"
	"formageddon/internal/infrastructure/config"
	"formageddon/internal/infrastructure/env"
)

func main() {
	envService := env.NewEnvService()

	var (
		configPath  = flag.String("config", envService.GetDefault("FORMAGEDDON_CONFIG", "formageddon.yaml"), "engine and recipient configuration")
		recipientID = flag.String("recipient", "", "recipient id from the configuration")
		subject     = flag.String("subject", "", "letter subject")
		issueArea   = flag.String("issue-area", "", "issue area for topic controls")
		threadID    = flag.Int64("thread", 0, "thread id for the generated reply address")
		letterID    = flag.String("letter", "", "resume an existing letter instead of creating one")
		captcha     = flag.String("captcha", "", "captcha solution when resuming a paused delivery")
		serve       = flag.Bool("serve", false, "run the captcha console and wait")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		envService.GetDuration("DELIVERY_TIMEOUT", 30*time.Minute))
	defer cancel()

	container, err := di.NewContainer(ctx, di.Config{
		Engine:         cfg,
		RunName:        *recipientID,
		Debug:          envService.GetBool("DEBUG", false),
		SolverAPIKey:   envService.Get("OPENROUTER_API_KEY"),
		DelegateAPIKey: envService.Get("OPENROUTER_API_KEY"),
		DelegateModel:  envService.Get("DELEGATE_MODEL_NAME"),
	})
	if err != nil {
		log.Fatalf("Init error: %v", err)
	}
	defer container.Close()

	recipient, ok := cfg.Recipient(*recipientID)
	if !ok {
		log.Fatalf("Unknown recipient %q", *recipientID)
	}

	if *serve {
		if container.Console == nil {
			log.Fatal("Console is disabled in the configuration")
		}
		container.Console.SetOnSolution(func(ctx context.Context, id, solution string) error {
			stored, err := container.Store.LoadLetter(ctx, id)
			if err != nil {
				return err
			}
			if stored == nil {
				return fmt.Errorf("unknown letter %s", id)
			}
			stored.Thread = senderThread(envService, stored.Thread.ID)
			stored.Status = entity.StatusTryingCaptcha

			opts := input.NewSendOptions()
			opts.CaptchaSolution = solution
			result, err := container.Sender.Send(ctx, stored, recipient, opts)
			if err != nil {
				return err
			}
			container.Logger.Info("Delivery resumed from console",
				"letter", id, "delivered", result.Delivered, "status", result.Status)
			return nil
		})
		if err := container.Console.Start(); err != nil {
			log.Fatalf("Console error: %v", err)
		}
		return
	}

	letter, err := buildLetter(envService, *letterID, *subject, *issueArea, *threadID, *captcha)
	if err != nil {
		log.Fatalf("Letter error: %v", err)
	}

	opts := input.NewSendOptions()
	opts.CaptchaSolution = *captcha
	container.Logger.Info("Delivery started", "letter", letter.ID, "recipient", recipient.ID)

	result, err := container.Sender.Send(ctx, letter, recipient, opts)
	if err != nil {
		container.Logger.Error("Delivery failed", "error", err)
		fmt.Printf("\nDelivery error: %v\n", err)
		os.Exit(1)
	}

	container.Logger.Info("Delivery finished", "delivered", result.Delivered, "status", result.Status)
	fmt.Printf("\nStatus: %s\n", result.Status)
	if !result.Delivered {
		os.Exit(1)
	}
}

// buildLetter assembles the letter from flags, sender details from the
// environment and the message body from stdin. When resuming, the body may
// be empty.
func buildLetter(envService *env.EnvService, letterID, subject, issueArea string, threadID int64, captchaSolution string) (*entity.Letter, error) {
	thread := senderThread(envService, threadID)

	if letterID != "" {
		// resuming: the body already went out with the original attempt
		letter := &entity.Letter{
			ID:        letterID,
			Thread:    thread,
			Subject:   subject,
			IssueArea: issueArea,
			Status:    entity.StatusTryingCaptcha,
		}
		letter.CaptchaSolution = captchaSolution
		return letter, nil
	}

	fmt.Println("\nEnter the message body, end with EOF (Ctrl-D):")
	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading message body: %w", err)
	}

	letter, err := entity.NewLetter(uuid.NewString(), thread, subject, strings.TrimSpace(string(body)))
	if err != nil {
		return nil, err
	}
	letter.IssueArea = issueArea
	return letter, nil
}

// senderThread builds the thread from the sender details configured in the
// environment.
func senderThread(envService *env.EnvService, threadID int64) *entity.Thread {
	return &entity.Thread{
		ID:              threadID,
		SenderTitle:     envService.Get("SENDER_TITLE"),
		SenderFirstName: envService.Get("SENDER_FIRST_NAME"),
		SenderLastName:  envService.Get("SENDER_LAST_NAME"),
		SenderEmail:     envService.Get("SENDER_EMAIL"),
		SenderPhone:     envService.Get("SENDER_PHONE"),
		SenderAddress1:  envService.Get("SENDER_ADDRESS1"),
		SenderAddress2:  envService.Get("SENDER_ADDRESS2"),
		SenderCity:      envService.Get("SENDER_CITY"),
		SenderState:     envService.Get("SENDER_STATE"),
		SenderZip5:      envService.Get("SENDER_ZIP5"),
		SenderZip4:      envService.Get("SENDER_ZIP4"),
	}
}
