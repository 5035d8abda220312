package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinova/clinic-scheduling/internal/clinic"
)

// SlotCache keeps generated day tilings in Redis so repeated availability
// lookups for the same physician/day/service don't re-read the calendar.
// It is a pure read-through cache, not a reservation mechanism: bookings
// are still validated against the database, and every write to a
// physician's day drops the whole day.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	return &SlotCache{client: client, ttl: ttl}
}

func slotKey(physicianID uuid.UUID, day time.Time, service clinic.ServiceType) string {
	return fmt.Sprintf("slots:%s:%s:%s", physicianID, day.UTC().Format("2006-01-02"), service)
}

func dayPattern(physicianID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("slots:%s:%s:*", physicianID, day.UTC().Format("2006-01-02"))
}

func (c *SlotCache) GetSlots(ctx context.Context, physicianID uuid.UUID, day time.Time, service clinic.ServiceType) ([]clinic.TimeSlot, bool) {
	data, err := c.client.Get(ctx, slotKey(physicianID, day, service)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("slot cache get error: %v", err)
		}
		return nil, false
	}

	var slots []clinic.TimeSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		log.Printf("slot cache decode error: %v", err)
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) SetSlots(ctx context.Context, physicianID uuid.UUID, day time.Time, service clinic.ServiceType, slots []clinic.TimeSlot) {
	data, err := json.Marshal(slots)
	if err != nil {
		log.Printf("slot cache encode error: %v", err)
		return
	}
	if err := c.client.Set(ctx, slotKey(physicianID, day, service), data, c.ttl).Err(); err != nil {
		log.Printf("slot cache set error: %v", err)
	}
}

// InvalidateDay drops every cached tiling for the physician's day,
// whatever the service. Called after any booking write that touches the
// day's occupancy.
func (c *SlotCache) InvalidateDay(ctx context.Context, physicianID uuid.UUID, day time.Time) {
	iter := c.client.Scan(ctx, 0, dayPattern(physicianID, day), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("slot cache scan error: %v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("slot cache invalidate error: %v", err)
	}
}
