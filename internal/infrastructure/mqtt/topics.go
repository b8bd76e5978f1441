package mqtt

import "fmt"

// Topic prefixes for the DMX Core MQTT surface.
//
// All topics use the flat scheme: dmx/{category}/{identifier}[/{suffix}]
const (
	// TopicPrefix is the base for all DMX Core topics.
	TopicPrefix = "dmx"

	// TopicPrefixUniverse is the base for per-universe topics.
	TopicPrefixUniverse = "dmx/universe"

	// TopicPrefixNodes is the base for node lifecycle topics.
	TopicPrefixNodes = "dmx/nodes"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "dmx/system"
)

// Topics provides builders for DMX Core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.UniverseState("0/0/1")
//	// Returns: "dmx/universe/0/0/1/state"
type Topics struct{}

// UniverseState returns the topic carrying a universe's channel state
// snapshot. Retained so new subscribers see the current state.
//
// Example: dmx/universe/0/0/1/state
func (Topics) UniverseState(address string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixUniverse, address)
}

// UniverseSet returns the command topic for writing channels on a
// universe.
//
// Example: dmx/universe/0/0/1/set
func (Topics) UniverseSet(address string) string {
	return fmt.Sprintf("%s/%s/set", TopicPrefixUniverse, address)
}

// UniverseAnimate returns the command topic for starting a fade on a
// universe.
//
// Example: dmx/universe/0/0/1/animate
func (Topics) UniverseAnimate(address string) string {
	return fmt.Sprintf("%s/%s/animate", TopicPrefixUniverse, address)
}

// NodeEvent returns the topic for one node's lifecycle events, keyed
// by the node's IP and bind index.
//
// Example: dmx/nodes/192.168.1.50_1
func (Topics) NodeEvent(nodeID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixNodes, nodeID)
}

// Trigger returns the topic for inbound ArtTrigger events.
//
// Example: dmx/trigger
func (Topics) Trigger() string {
	return fmt.Sprintf("%s/trigger", TopicPrefix)
}

// SystemStatus returns the system status topic, used for online and
// LWT offline announcements.
//
// Example: dmx/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllUniverseSets returns a pattern matching set commands on every
// universe. Multi-level because Art-Net addresses contain slashes.
//
// Pattern: dmx/universe/#
func (Topics) AllUniverseSets() string {
	return fmt.Sprintf("%s/#", TopicPrefixUniverse)
}

// AllNodeEvents returns a pattern matching all node lifecycle topics.
//
// Pattern: dmx/nodes/+
func (Topics) AllNodeEvents() string {
	return fmt.Sprintf("%s/+", TopicPrefixNodes)
}

// AllTopics returns a pattern matching all DMX Core topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: dmx/#
func (Topics) AllTopics() string {
	return "dmx/#"
}
