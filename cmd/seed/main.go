// seed inserts development sample data for local testing: two orders with
// subtasks and comments, a few dashboard tasks, and enough status history to
// exercise journey reconstruction. Idempotent: skips inserts when the first
// demo order already exists.
package main

import (
	"context"
	"log"
	"time"

	"orderdesk/backend/internal/config"
	"orderdesk/backend/internal/db"
	"orderdesk/backend/internal/history"
	historyrepo "orderdesk/backend/internal/history/repository"
	"orderdesk/backend/internal/record/domain"
	recordrepo "orderdesk/backend/internal/record/repository"
)

const (
	devUserAlice = "alice"
	devUserBob   = "bob"

	orderInstallID = "11111111-1111-1111-1111-111111111101"
	orderRepairID  = "11111111-1111-1111-1111-111111111102"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	records := recordrepo.NewPostgresRepository(pool)
	recorder := history.NewRecorder(historyrepo.NewPostgresRepository(pool))

	meta, err := records.Meta(ctx, domain.KindOrder, orderInstallID)
	if err != nil {
		log.Fatalf("seed: check existing data: %v", err)
	}
	if meta != nil {
		log.Println("seed: demo data already present, nothing to do")
		return
	}

	now := time.Now().UTC()
	due := now.Add(7 * 24 * time.Hour)

	orders := []*domain.Order{
		{
			ID: orderInstallID, Number: "ORD-1001", Title: "Fiber install, Hoved St 12",
			Customer: "Hoved St Bakery", Status: domain.OrderStatusInProgress,
			AssignedTo: devUserAlice, DueDate: &due,
			CreatedBy: devUserBob, UpdatedBy: devUserAlice,
			CreatedAt: now.Add(-72 * time.Hour), UpdatedAt: now.Add(-2 * time.Hour),
		},
		{
			ID: orderRepairID, Number: "ORD-1002", Title: "Router swap, Nygata 4",
			Customer: "Nygata Dental", Status: domain.OrderStatusNew,
			CreatedBy: devUserAlice, UpdatedBy: devUserAlice,
			CreatedAt: now.Add(-4 * time.Hour), UpdatedAt: now.Add(-4 * time.Hour),
		},
	}
	for _, o := range orders {
		if err := records.CreateOrder(ctx, o); err != nil {
			log.Fatalf("seed: order %s: %v", o.Number, err)
		}
	}

	subtasks := []*domain.Subtask{
		{
			ID: "22222222-2222-2222-2222-222222222201", OrderID: orderInstallID,
			Title: "Survey the site", Status: domain.SubtaskStatusDone, Position: 0,
			AssignedTo: devUserAlice, CreatedBy: devUserBob, UpdatedBy: devUserAlice,
			CreatedAt: now.Add(-70 * time.Hour), UpdatedAt: now.Add(-48 * time.Hour),
		},
		{
			ID: "22222222-2222-2222-2222-222222222202", OrderID: orderInstallID,
			Title: "Pull cable to basement", Status: domain.SubtaskStatusDevelopment, Position: 0,
			AssignedTo: devUserAlice, CreatedBy: devUserBob, UpdatedBy: devUserAlice,
			CreatedAt: now.Add(-70 * time.Hour), UpdatedAt: now.Add(-3 * time.Hour),
		},
		{
			ID: "22222222-2222-2222-2222-222222222203", OrderID: orderInstallID,
			Title: "Terminate and test", Status: domain.SubtaskStatusPlanning, Position: 0,
			CreatedBy: devUserBob, UpdatedBy: devUserBob,
			CreatedAt: now.Add(-70 * time.Hour), UpdatedAt: now.Add(-70 * time.Hour),
		},
	}
	for _, s := range subtasks {
		if err := records.CreateSubtask(ctx, s); err != nil {
			log.Fatalf("seed: subtask %s: %v", s.Title, err)
		}
	}

	comments := []*domain.Comment{
		{
			ID: "33333333-3333-3333-3333-333333333301", OrderID: orderInstallID,
			AuthorID: devUserBob, Body: "Customer prefers work before 10:00.",
			Reactions: map[string][]string{"👍": {devUserAlice}},
			CreatedAt: now.Add(-60 * time.Hour), UpdatedAt: now.Add(-60 * time.Hour),
		},
		{
			ID: "33333333-3333-3333-3333-333333333302", OrderID: orderInstallID,
			AuthorID: devUserAlice, Body: "Basement access arranged with the landlord.",
			CreatedAt: now.Add(-20 * time.Hour), UpdatedAt: now.Add(-20 * time.Hour),
		},
	}
	for _, c := range comments {
		if err := records.CreateComment(ctx, c); err != nil {
			log.Fatalf("seed: comment: %v", err)
		}
	}

	tasks := []*domain.DashboardTask{
		{
			ID: "44444444-4444-4444-4444-444444444401", Title: "Order fiber patch cords",
			Status: domain.TaskStatusInProgress, Position: 0, OwnerID: devUserAlice,
			CreatedBy: devUserAlice, UpdatedBy: devUserAlice,
			CreatedAt: now.Add(-30 * time.Hour), UpdatedAt: now.Add(-5 * time.Hour),
		},
		{
			ID: "44444444-4444-4444-4444-444444444402", Title: "Weekly team sync notes",
			Status: domain.TaskStatusTodo, Position: 1, OwnerID: devUserBob,
			CreatedBy: devUserBob, UpdatedBy: devUserBob,
			CreatedAt: now.Add(-10 * time.Hour), UpdatedAt: now.Add(-10 * time.Hour),
		},
	}
	for _, t := range tasks {
		if err := records.CreateTask(ctx, t); err != nil {
			log.Fatalf("seed: task %s: %v", t.Title, err)
		}
	}

	// Status history for the in-progress order: new → on_hold → in_progress,
	// so its journey has a revisit-free multi-step timeline out of the box.
	recorder.RecordFieldChange(ctx, orderInstallID, devUserAlice, domain.StatusField, domain.OrderStatusNew, domain.OrderStatusOnHold)
	recorder.RecordFieldChange(ctx, orderInstallID, devUserAlice, domain.StatusField, domain.OrderStatusOnHold, domain.OrderStatusInProgress)
	recorder.RecordFieldChange(ctx, "22222222-2222-2222-2222-222222222201", devUserAlice, domain.StatusField, domain.SubtaskStatusPlanning, domain.SubtaskStatusDevelopment)
	recorder.RecordFieldChange(ctx, "22222222-2222-2222-2222-222222222201", devUserAlice, domain.StatusField, domain.SubtaskStatusDevelopment, domain.SubtaskStatusDone)

	log.Printf("seed: inserted %d orders, %d subtasks, %d comments, %d tasks", len(orders), len(subtasks), len(comments), len(tasks))
}
