package mqtt

import "strings"

// topicSeparator splits MQTT topics into levels.
const topicSeparator = "/"

// MatchTopic reports whether an MQTT topic matches a subscription pattern.
//
// Matching is implemented locally rather than delegated to the transport
// library because a single physical subscription is fanned out to multiple
// logical handlers, each with its own pattern.
//
// Rules:
//   - Exact string equality always matches.
//   - A pattern ending in "#" matches any topic that shares all of the
//     pattern's preceding segments ("+" wildcards exactly one segment at
//     its position) and has at least that many segments; "#" consumes the
//     remaining depth.
//   - Otherwise pattern and topic must have equal segment counts, and each
//     segment must match literally or be "+".
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patternSegs := strings.Split(pattern, topicSeparator)
	topicSegs := strings.Split(topic, topicSeparator)

	if patternSegs[len(patternSegs)-1] == "#" {
		prefix := patternSegs[:len(patternSegs)-1]
		if len(topicSegs) < len(prefix) {
			return false
		}
		return segmentsMatch(prefix, topicSegs[:len(prefix)])
	}

	if len(patternSegs) != len(topicSegs) {
		return false
	}
	return segmentsMatch(patternSegs, topicSegs)
}

// segmentsMatch compares equal-length segment slices, treating "+" in the
// pattern as a single-segment wildcard.
func segmentsMatch(pattern, topic []string) bool {
	for i, seg := range pattern {
		if seg == "+" {
			continue
		}
		if seg != topic[i] {
			return false
		}
	}
	return true
}
