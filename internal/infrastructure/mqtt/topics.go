package mqtt

import "fmt"

// TopicPrefix is the root of every topic the bridge uses.
const TopicPrefix = "ponbike"

// Topics provides builders for the bridge's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.EntityState("A1", "odometer") // "ponbike/state/A1/odometer"
type Topics struct{}

// Status is the bridge process online/offline topic (retained, also the LWT).
//
// Example: ponbike/status
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// Health is the coordinator health topic (retained).
//
// Example: ponbike/health
func (Topics) Health() string {
	return TopicPrefix + "/health"
}

// EntityState returns the retained value topic of one entity.
//
// Example: ponbike/state/A1/odometer
func (Topics) EntityState(bikeID, key string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, bikeID, key)
}

// EntityConfig returns the retained metadata topic of one entity (name,
// unit, device class).
//
// Example: ponbike/entity/A1/odometer
func (Topics) EntityConfig(bikeID, key string) string {
	return fmt.Sprintf("%s/entity/%s/%s", TopicPrefix, bikeID, key)
}

// Device returns the retained device document topic of one bike.
//
// Example: ponbike/device/A1
func (Topics) Device(bikeID string) string {
	return fmt.Sprintf("%s/device/%s", TopicPrefix, bikeID)
}

// Command returns the topic for an inbound command.
//
// Example: ponbike/command/refresh
func (Topics) Command(name string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, name)
}

// AllEntityStates matches every entity state topic.
//
// Pattern: ponbike/state/+/+
func (Topics) AllEntityStates() string {
	return TopicPrefix + "/state/+/+"
}

// AllCommands matches every command topic.
//
// Pattern: ponbike/command/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// AllTopics matches everything the bridge publishes or consumes.
//
// Pattern: ponbike/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
