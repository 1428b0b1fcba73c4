package mqtt

import "fmt"

// Topic prefixes for the cuckoo message bus.
//
// Device topics use the scheme: cuckoo/device/{device_id}/{channel}
const (
	// TopicPrefix is the base for all cuckoo topics.
	TopicPrefix = "cuckoo"

	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "cuckoo/device"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "cuckoo/system"
)

// Topics provides builders for cuckoo MQTT topics. Using these helpers keeps
// topic naming consistent across the codebase.
type Topics struct{}

// DevicePlay returns the topic a device listens on for play notifications.
//
// Example: cuckoo/device/dev-a1b2c3d4/play
func (Topics) DevicePlay(deviceID string) string {
	return fmt.Sprintf("%s/%s/play", TopicPrefixDevice, deviceID)
}

// DeviceAck returns the topic a device reports playback results on.
//
// Example: cuckoo/device/dev-a1b2c3d4/ack
func (Topics) DeviceAck(deviceID string) string {
	return fmt.Sprintf("%s/%s/ack", TopicPrefixDevice, deviceID)
}

// DeviceStatus returns the topic for a device's online/offline status.
//
// Example: cuckoo/device/dev-a1b2c3d4/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevice, deviceID)
}

// SystemStatus returns the core's status topic.
//
// Example: cuckoo/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceAcks returns a pattern matching playback results from all devices.
//
// Pattern: cuckoo/device/+/ack
func (Topics) AllDeviceAcks() string {
	return fmt.Sprintf("%s/+/ack", TopicPrefixDevice)
}

// AllDeviceStatuses returns a pattern matching status from all devices.
//
// Pattern: cuckoo/device/+/status
func (Topics) AllDeviceStatuses() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixDevice)
}
