package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mrlokans/kompanion/internal/entities"
)

// MemoryDeviceStore keeps devices for the lifetime of the process.
type MemoryDeviceStore struct {
	mu      sync.RWMutex
	nextID  uint
	devices map[string]entities.Device
}

func NewMemoryDeviceStore() *MemoryDeviceStore {
	return &MemoryDeviceStore{devices: make(map[string]entities.Device)}
}

func (m *MemoryDeviceStore) Create(ctx context.Context, device *entities.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[device.Name]; ok {
		return ErrDeviceExists
	}
	m.nextID++
	now := time.Now()
	device.ID = m.nextID
	device.CreatedAt = now
	device.UpdatedAt = now
	m.devices[device.Name] = *device
	return nil
}

func (m *MemoryDeviceStore) GetByName(ctx context.Context, name string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	device, ok := m.devices[name]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return &device, nil
}

func (m *MemoryDeviceStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[name]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, name)
	return nil
}

func (m *MemoryDeviceStore) List(ctx context.Context, ownerID string) ([]entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]entities.Device, 0, len(m.devices))
	for _, d := range m.devices {
		if d.OwnerID == ownerID {
			devices = append(devices, d)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

func (m *MemoryDeviceStore) Touch(ctx context.Context, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	device, ok := m.devices[name]
	if !ok {
		return ErrDeviceNotFound
	}
	device.LastSeenAt = &at
	m.devices[name] = device
	return nil
}
