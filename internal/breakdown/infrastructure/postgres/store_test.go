package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	breakdown "fleetops-cloud/internal/breakdown/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, mock
}

func TestStore_UpsertExecutesConflictUpdate(t *testing.T) {
	store, mock := newMockStore(t)

	receivedAt := time.Date(2026, 3, 4, 10, 0, 30, 0, time.UTC)
	occurredOn := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	record := breakdown.Record{
		RouteNumber:  "12",
		OccurredOn:   "2026-03-04T10:00:00Z",
		Priority:     breakdown.PriorityHigh,
		Description:  "engine stalled",
		ReportedBy:   "dispatch-3",
		Reason:       "Mechanical Problem",
		DelayMinutes: 25,
		ReceivedAt:   receivedAt,
	}

	mock.ExpectExec("INSERT INTO breakdown_records").
		WithArgs("12", occurredOn, breakdown.PriorityHigh, "engine stalled", "dispatch-3", "Mechanical Problem", 25, receivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Upsert(context.Background(), record); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_UpsertWrapsDBError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO breakdown_records").
		WillReturnError(errors.New("connection refused"))

	record := breakdown.Record{
		RouteNumber: "12",
		OccurredOn:  "2026-03-04T10:00:00Z",
		Priority:    breakdown.PriorityNormal,
		ReceivedAt:  time.Now().UTC(),
	}
	err := store.Upsert(context.Background(), record)
	if !errors.Is(err, breakdown.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}

func TestStore_UpsertRejectsBadTimestamp(t *testing.T) {
	store, _ := newMockStore(t)

	record := breakdown.Record{RouteNumber: "12", OccurredOn: "not-a-time"}
	if err := store.Upsert(context.Background(), record); err == nil {
		t.Fatal("expected error for invalid occurredOn")
	}
}

func TestStore_ListByDayMapsRows(t *testing.T) {
	store, mock := newMockStore(t)

	dayStart := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"route_number", "occurred_on", "priority", "description", "reported_by", "reason", "delay_minutes", "received_at",
	}).
		AddRow("12", time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC), "high", "engine stalled", "dispatch-3", "Mechanical Problem", 25, time.Date(2026, 3, 4, 8, 1, 0, 0, time.UTC)).
		AddRow("7", time.Date(2026, 3, 4, 12, 30, 0, 0, time.UTC), "normal", "flat tire", "driver-9", "Flat Tire", 0, time.Date(2026, 3, 4, 12, 31, 0, 0, time.UTC))

	mock.ExpectQuery("SELECT (.+) FROM breakdown_records").
		WithArgs(dayStart, dayEnd).
		WillReturnRows(rows)

	records, err := store.ListByDay(context.Background(), "2026-03-04")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].OccurredOn != "2026-03-04T08:00:00Z" {
		t.Fatalf("expected RFC 3339 occurredOn, got %q", records[0].OccurredOn)
	}
	if records[1].RouteNumber != "7" || records[1].DelayMinutes != 0 {
		t.Fatalf("unexpected second record %+v", records[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_ListByDayRejectsBadDay(t *testing.T) {
	store, _ := newMockStore(t)
	if _, err := store.ListByDay(context.Background(), "03/04/2026"); err == nil {
		t.Fatal("expected error for invalid day")
	}
}
