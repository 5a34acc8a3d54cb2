package model

import (
	"fmt"
	"sync"
)

// DeviceIdentity caches the node number of the locally attached device. It is
// written by the node-identity handler and read when labelling metrics.
type DeviceIdentity struct {
	mu     sync.RWMutex
	nodeID uint32
}

func NewDeviceIdentity() *DeviceIdentity {
	return &DeviceIdentity{}
}

func (d *DeviceIdentity) SetNodeID(id uint32) {
	d.mu.Lock()
	d.nodeID = id
	d.mu.Unlock()
}

func (d *DeviceIdentity) NodeID() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nodeID
}

// DeviceID renders the cached node number as a device-id label value.
func (d *DeviceIdentity) DeviceID() string {
	return FormatDeviceID(d.NodeID())
}

// FormatDeviceID renders a node number the way the mesh firmware does:
// "!" followed by lowercase hex without padding.
func FormatDeviceID(num uint32) string {
	return fmt.Sprintf("!%x", num)
}
