package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for turn and tool spans and metrics.
var (
	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolResultLength = attribute.Key("tool.result_length")

	AttrTurnPath   = attribute.Key("turn.path")
	AttrTurnStatus = attribute.Key("turn.status")
)
