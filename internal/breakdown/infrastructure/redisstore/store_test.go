package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	breakdown "fleetops-cloud/internal/breakdown/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store, err := NewStore(client)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, mr, client
}

func testRecord(route, occurredOn, description string) breakdown.Record {
	return breakdown.Record{
		RouteNumber: route,
		OccurredOn:  occurredOn,
		Priority:    breakdown.PriorityNormal,
		Description: description,
		ReceivedAt:  time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

func TestStore_UpsertWritesRecordAndDayIndex(t *testing.T) {
	store, mr, _ := newTestStore(t)

	record := testRecord("12", "2026-03-04T10:00:00Z", "engine stalled")
	if err := store.Upsert(context.Background(), record); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	key := "breakdowns:record:12|2026-03-04T10:00:00Z"
	if _, err := mr.Get(key); err != nil {
		t.Fatalf("record key missing: %v", err)
	}
	members, err := mr.SMembers("breakdowns:day:2026-03-04")
	if err != nil {
		t.Fatalf("day index missing: %v", err)
	}
	if len(members) != 1 || members[0] != key {
		t.Fatalf("unexpected day index %v", members)
	}
}

func TestStore_UpsertIsIdempotentPerKey(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	first := testRecord("12", "2026-03-04T10:00:00Z", "engine stalled")
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := first
	second.Description = "engine stalled, tow dispatched"
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	records, err := store.ListByDay(ctx, "2026-03-04")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if records[0].Description != "engine stalled, tow dispatched" {
		t.Fatalf("expected last write to win, got %q", records[0].Description)
	}
}

func TestStore_ListByDayOrdersByOccurrence(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	for _, record := range []breakdown.Record{
		testRecord("7", "2026-03-04T12:30:00Z", "flat tire"),
		testRecord("12", "2026-03-04T08:00:00Z", "engine stalled"),
		testRecord("3", "2026-03-04T10:15:00Z", "door jam"),
	} {
		if err := store.Upsert(ctx, record); err != nil {
			t.Fatalf("upsert %s: %v", record.RouteNumber, err)
		}
	}

	records, err := store.ListByDay(ctx, "2026-03-04")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	want := []string{"12", "3", "7"}
	for i, route := range want {
		if records[i].RouteNumber != route {
			t.Fatalf("position %d: expected route %s, got %s", i, route, records[i].RouteNumber)
		}
	}
}

func TestStore_ListByDayEmpty(t *testing.T) {
	store, _, _ := newTestStore(t)
	records, err := store.ListByDay(context.Background(), "2026-01-01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestStore_UpsertReportsStorageUnavailable(t *testing.T) {
	store, mr, _ := newTestStore(t)
	mr.Close()

	err := store.Upsert(context.Background(), testRecord("12", "2026-03-04T10:00:00Z", "x"))
	if !errors.Is(err, breakdown.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
