package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// Registered codes.
const (
	CodeConfigNotFound   = "B001"
	CodeConfigParse      = "B002"
	CodeInvalidAddress   = "B003"
	CodeInvalidGrid      = "B004"
	CodeInvalidDuration  = "B005"
	CodeInvalidQueue     = "B006"
	CodeUnknownActuator  = "B007"
	CodeInvalidLogLevel  = "B008"
	CodeInvalidLogFormat = "B009"
	CodeInvalidPayload   = "B010"

	CodeInvalidFlag   = "B020"
	CodeListenFailed  = "B021"
	CodeServerFailed  = "B022"
	CodeDisplayFailed = "B030"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (B001-B019)
	// ============================================

	CodeConfigNotFound: {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Detail:     "The file given with --config does not exist.",
		Suggestion: "Run 'pixelbridge config print > pixelbridge.yaml' to create one with the defaults",
	},
	CodeConfigParse: {
		Category:   CategoryConfig,
		Message:    "Configuration file is not valid YAML",
		Detail:     "The configuration file could not be decoded. Durations are written as strings such as \"5s\" or \"250ms\".",
		Suggestion: "Compare your file with the output of 'pixelbridge config print'",
	},
	CodeInvalidAddress: {
		Category:   CategoryConfig,
		Message:    "Invalid pattern source address",
		Detail:     "The source address must be host:port, for example 192.168.4.1:81.",
		Suggestion: "Set source.address or pass --source host:port",
	},
	CodeInvalidGrid: {
		Category: CategoryConfig,
		Message:  "Invalid grid dimensions",
		Detail:   "The grid needs at least one pixel and at least one column, and the pixel count must fill whole rows.",
	},
	CodeInvalidDuration: {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Intervals and backoffs must be positive; timeouts must not be negative.",
	},
	CodeInvalidQueue: {
		Category: CategoryConfig,
		Message:  "Invalid queue depth",
		Detail:   "Queue depths must be at least 1.",
	},
	CodeUnknownActuator: {
		Category:   CategoryConfig,
		Message:    "Unknown actuator",
		Suggestion: "Use one of: log, terminal, none",
	},
	CodeInvalidLogLevel: {
		Category:   CategoryConfig,
		Message:    "Unknown log level",
		Suggestion: "Use one of: debug, info, warn, error",
	},
	CodeInvalidLogFormat: {
		Category:   CategoryConfig,
		Message:    "Unknown log format",
		Suggestion: "Use one of: text, json",
	},
	CodeInvalidPayload: {
		Category: CategoryConfig,
		Message:  "Invalid maximum payload size",
		Detail:   "The maximum frame payload must hold at least one preview frame for the configured grid.",
	},

	// ============================================
	// CLI Errors (B020-B029)
	// ============================================

	CodeInvalidFlag: {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
	},
	CodeListenFailed: {
		Category:   CategoryNetwork,
		Message:    "Could not listen on address",
		Suggestion: "Check that no other process uses the port, or pick another with --listen / --metrics-addr",
	},
	CodeServerFailed: {
		Category: CategoryNetwork,
		Message:  "HTTP server stopped unexpectedly",
	},

	// ============================================
	// Display Errors (B030-B039)
	// ============================================

	CodeDisplayFailed: {
		Category: CategoryDisplay,
		Message:  "Display driver stopped",
	},
}

// GetAllCodes returns all registered error codes in order.
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
