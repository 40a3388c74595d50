package discovery

import "strings"

// createInstanceName builds the mDNS instance name peers advertise
// themselves under: "{name}--{deviceID}". A literal "--" already present in
// name is collapsed to a single dash first so the rightmost "--" in the
// instance name always separates name from id, matching
// discovery.rs::create_instance_name.
func createInstanceName(name, deviceID string) string {
	collapsed := strings.ReplaceAll(name, "--", "-")
	return collapsed + "--" + deviceID
}

// parseInstanceName splits an mDNS instance name back into (name, deviceID)
// using the rightmost "--" separator. It returns ok=false if no separator
// is found or either half would be empty, matching
// discovery.rs::parse_instance_name.
func parseInstanceName(instance string) (name, deviceID string, ok bool) {
	idx := strings.LastIndex(instance, "--")
	if idx <= 0 || idx+2 >= len(instance) {
		return "", "", false
	}
	name = instance[:idx]
	deviceID = instance[idx+2:]
	if name == "" || deviceID == "" {
		return "", "", false
	}
	return name, deviceID, true
}
