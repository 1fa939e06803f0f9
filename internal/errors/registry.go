package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Help     string
	DocURL   string
}

const docBase = "https://flight.vango.dev/docs/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Help:     "No flight.json was found in the project directory or any parent directory.",
		DocURL:   docBase + "E100",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Help:     "flight.json could not be parsed. Check the JSON syntax.",
		DocURL:   docBase + "E101",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Help:     "A configuration value is outside its allowed range.",
		DocURL:   docBase + "E102",
	},

	// ============================================
	// Routing Errors (E200-E229)
	// ============================================

	"E200": {
		Category: CategoryRouting,
		Message:  "Route manifest unreadable",
		Help:     "The route manifest could not be read or decoded. Manifests are JSON or YAML lists of route entries.",
		DocURL:   docBase + "E200",
	},
	"E201": {
		Category: CategoryRouting,
		Message:  "Duplicate route id",
		Help:     "Route ids must be unique across the whole manifest.",
		DocURL:   docBase + "E201",
	},
	"E202": {
		Category: CategoryRouting,
		Message:  "Missing root route",
		Help:     `Every manifest must declare a route with id "root" that all other routes descend from.`,
		DocURL:   docBase + "E202",
	},
	"E203": {
		Category: CategoryRouting,
		Message:  "Unknown parent route",
		Help:     "A route names a parent id that is not declared in the manifest.",
		DocURL:   docBase + "E203",
	},
	"E204": {
		Category: CategoryRouting,
		Message:  "Route parent cycle",
		Help:     "Following parent ids from this route never reaches the root route.",
		DocURL:   docBase + "E204",
	},
	"E205": {
		Category: CategoryRouting,
		Message:  "Index route with children",
		Help:     "Index routes render at their parent's path and cannot declare child routes.",
		DocURL:   docBase + "E205",
	},
	"E206": {
		Category: CategoryRouting,
		Message:  "Absolute child path outside parent",
		Help:     "An absolute child route path must start with the full path of its parent route.",
		DocURL:   docBase + "E206",
	},
	"E207": {
		Category: CategoryRouting,
		Message:  "Splat segment not last",
		Help:     `A "*" segment captures the rest of the path and may only appear at the end of a pattern.`,
		DocURL:   docBase + "E207",
	},
	"E209": {
		Category: CategoryRouting,
		Message:  "Route id missing",
		Help:     "Every manifest entry needs a non-empty id.",
		DocURL:   docBase + "E209",
	},
	"E208": {
		Category: CategoryRouting,
		Message:  "Missing route parameter",
		Help:     "A path could not be generated because a required parameter has no value.",
		DocURL:   docBase + "E208",
	},

	// ============================================
	// Protocol Errors (E300-E319)
	// ============================================

	"E300": {
		Category: CategoryProtocol,
		Message:  "Malformed segment stream",
		Help:     "A frame boundary in the segment stream could not be decoded. The navigation is abandoned and the cached segment stays unresolved.",
		DocURL:   docBase + "E300",
	},
	"E301": {
		Category: CategoryProtocol,
		Message:  "Segment stream ended early",
		Help:     "The connection closed before the end frame arrived.",
		DocURL:   docBase + "E301",
	},
	"E302": {
		Category: CategoryProtocol,
		Message:  "Unexpected response type",
		Help:     "The server answered a segment request with something other than text/x-component.",
		DocURL:   docBase + "E302",
	},

	// ============================================
	// Action Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategoryAction,
		Message:  "Action not found",
		Help:     "The x-action header names an action that was never registered with the server.",
		DocURL:   docBase + "E400",
	},
	"E401": {
		Category: CategoryAction,
		Message:  "Action failed",
		Help:     "The server action returned an error. The mutation was rejected.",
		DocURL:   docBase + "E401",
	},

	// ============================================
	// CLI Errors (E500-E519)
	// ============================================

	"E500": {
		Category: CategoryCLI,
		Message:  "Invalid command arguments",
		Help:     "Run the command with --help to see its usage.",
		DocURL:   docBase + "E500",
	},
}

// GetAllCodes returns all registered error codes in ascending order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
