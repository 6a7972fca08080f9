package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/adapters/postgres"
	"github.com/scribeline/payment-engine/internal/services/agreements"
)

// Seeds a handful of demo agreements with installment schedules so the
// checkout and reconciliation flows can be exercised locally.
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "host=localhost port=5432 user=postgres password=postgres dbname=payment_engine sslmode=disable"
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dbURL, 5)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer pool.Close()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	db := postgres.NewDBExecutor(pool)
	service := agreements.NewService(db, postgres.NewAgreementRepository(), logger)

	studentID := uuid.New().String()
	writerID := uuid.New().String()
	now := time.Now()

	seeds := []agreements.CreateAgreementRequest{
		{
			StudentID:   studentID,
			WriterID:    writerID,
			Title:       "Undergraduate thesis, 3 chapters",
			TotalAmount: decimal.NewFromInt(300),
			Installments: []agreements.InstallmentInput{
				{Amount: decimal.NewFromInt(100), DueDate: now.AddDate(0, 0, 14)},
				{Amount: decimal.NewFromInt(100), DueDate: now.AddDate(0, 1, 0)},
				{Amount: decimal.NewFromInt(100), DueDate: now.AddDate(0, 1, 14)},
			},
		},
		{
			StudentID:   studentID,
			WriterID:    writerID,
			Title:       "Literature review, single deliverable",
			TotalAmount: decimal.NewFromFloat(149.99),
			Installments: []agreements.InstallmentInput{
				{Amount: decimal.NewFromFloat(149.99), DueDate: now.AddDate(0, 0, 7)},
			},
		},
		{
			StudentID:   uuid.New().String(),
			WriterID:    writerID,
			Title:       "Dissertation editing, 4 milestones",
			TotalAmount: decimal.NewFromInt(1000),
			Installments: []agreements.InstallmentInput{
				{Amount: decimal.NewFromInt(250), DueDate: now.AddDate(0, 0, 10)},
				{Amount: decimal.NewFromInt(250), DueDate: now.AddDate(0, 0, 30)},
				{Amount: decimal.NewFromInt(250), DueDate: now.AddDate(0, 2, 0)},
				{Amount: decimal.NewFromInt(250), DueDate: now.AddDate(0, 3, 0)},
			},
		},
	}

	fmt.Println("========================================")
	fmt.Println("SEED DATA CREATED")
	fmt.Println("========================================")
	fmt.Printf("Student ID: %s\n", studentID)
	fmt.Printf("Writer ID:  %s\n", writerID)
	fmt.Println()

	for _, req := range seeds {
		agreement, err := service.Create(ctx, req)
		if err != nil {
			log.Fatalf("Failed to seed agreement %q: %v", req.Title, err)
		}
		fmt.Printf("  %s\n", agreement.Title)
		fmt.Printf("    Agreement ID: %s\n", agreement.ID)
		fmt.Printf("    Total: %s USD across %d installments\n",
			agreement.TotalAmount.StringFixed(2), len(agreement.Installments))
	}

	fmt.Println()
	fmt.Println("Use the student ID as payer_id in checkout requests.")
	fmt.Println("========================================")
}
