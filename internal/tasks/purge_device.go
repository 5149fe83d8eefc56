package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// StatisticsPurger deletes a device's uploaded statistics.
type StatisticsPurger interface {
	Purge(ctx context.Context, principal string) error
}

// DeviceRegistry reports whether a device name is currently registered.
type DeviceRegistry interface {
	DeviceRegistered(ctx context.Context, name string) (bool, error)
}

// PurgeDeviceStatisticsTask retries the statistics cleanup of a deleted
// device after the inline purge failed.
type PurgeDeviceStatisticsTask struct {
	Device    string    `json:"device"`
	RemovedAt time.Time `json:"removed_at"`
}

// Config returns the queue configuration for statistics purge tasks.
func (t PurgeDeviceStatisticsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "purge_device_statistics",
		MaxAttempts: 5,
		Backoff:     time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PurgeDeviceStatisticsProcessor creates a processor function for PurgeDeviceStatisticsTask.
//
// A device registered again under the same name owns the blob at that path
// now, so the task is dropped instead of deleting its statistics.
func PurgeDeviceStatisticsProcessor(purger StatisticsPurger, registry DeviceRegistry) backlite.QueueProcessor[PurgeDeviceStatisticsTask] {
	return func(ctx context.Context, task PurgeDeviceStatisticsTask) error {
		if purger == nil {
			return fmt.Errorf("statistics purger not configured")
		}
		if task.Device == "" {
			return fmt.Errorf("purge task without device name")
		}
		if registry != nil {
			registered, err := registry.DeviceRegistered(ctx, task.Device)
			if err != nil {
				return fmt.Errorf("look up device %s: %w", task.Device, err)
			}
			if registered {
				log.Printf("[TASK] Skipping statistics purge for %s: registered again after removal at %s",
					task.Device, task.RemovedAt.Format(time.RFC3339))
				return nil
			}
		}
		if err := purger.Purge(ctx, task.Device); err != nil {
			return fmt.Errorf("purge statistics for %s: %w", task.Device, err)
		}
		log.Printf("[TASK] Purged statistics for removed device %s", task.Device)
		return nil
	}
}

// NewPurgeDeviceStatisticsQueue creates a backlite queue for statistics purge tasks.
func NewPurgeDeviceStatisticsQueue(purger StatisticsPurger, registry DeviceRegistry) backlite.Queue {
	return backlite.NewQueue(PurgeDeviceStatisticsProcessor(purger, registry))
}

// EnqueueDevicePurge schedules another attempt at removing a device's
// statistics.
func (c *Client) EnqueueDevicePurge(ctx context.Context, device string, removedAt time.Time) error {
	task := PurgeDeviceStatisticsTask{Device: device, RemovedAt: removedAt}
	ids, err := c.Add(task).Ctx(ctx).Save()
	if err != nil {
		return fmt.Errorf("enqueue statistics purge for %s: %w", device, err)
	}
	log.Printf("[TASK] Queued statistics purge for %s (%v)", device, ids)
	return nil
}
