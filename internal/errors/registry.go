package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Registry Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryRegistry,
		Message:  "Invalid view type name",
		Detail:   "View types must have a non-empty name that is unique within a registry.",
		DocURL:   "https://vnative.dev/docs/errors/E100",
	},
	"E101": {
		Category: CategoryRegistry,
		Message:  "Duplicate property",
		Detail:   "A view type declared the same property name more than once.",
		DocURL:   "https://vnative.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryRegistry,
		Message:  "Invalid property descriptor",
		Detail:   "Property descriptors need a non-empty name and a known value kind.",
		DocURL:   "https://vnative.dev/docs/errors/E102",
	},
	"E103": {
		Category: CategoryRegistry,
		Message:  "View type already registered",
		Detail:   "Another view type with this name exists in the registry.",
		DocURL:   "https://vnative.dev/docs/errors/E103",
	},

	// ============================================
	// Bridge Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryBridge,
		Message:  "Native call failed",
		Detail:   "The native side rejected a bridge call.",
		DocURL:   "https://vnative.dev/docs/errors/E120",
	},
	"E121": {
		Category: CategoryBridge,
		Message:  "Context disposed",
		Detail:   "The bridge context was torn down while the call was pending.",
		DocURL:   "https://vnative.dev/docs/errors/E121",
	},

	// ============================================
	// Protocol Errors (E140-E159)
	// ============================================

	"E140": {
		Category: CategoryProtocol,
		Message:  "Handshake failed",
		Detail:   "The native peer did not complete the handshake.",
		DocURL:   "https://vnative.dev/docs/errors/E140",
	},
	"E141": {
		Category: CategoryProtocol,
		Message:  "Protocol version mismatch",
		Detail:   "The native peer speaks an incompatible protocol version.",
		DocURL:   "https://vnative.dev/docs/errors/E141",
	},

	// ============================================
	// Config Errors (E160-E179)
	// ============================================

	"E160": {
		Category: CategoryConfig,
		Message:  "Invalid vnative.yaml",
		Detail:   "The configuration file could not be parsed.",
		DocURL:   "https://vnative.dev/docs/errors/E160",
	},
	"E161": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range or malformed.",
		DocURL:   "https://vnative.dev/docs/errors/E161",
	},
	"E162": {
		Category: CategoryConfig,
		Message:  "Config file not readable",
		Detail:   "The configuration file exists but could not be read.",
		DocURL:   "https://vnative.dev/docs/errors/E162",
	},

	// ============================================
	// Devkit Errors (E180-E199)
	// ============================================

	"E180": {
		Category: CategoryDevkit,
		Message:  "Log store unavailable",
		Detail:   "The devkit log database could not be opened.",
		DocURL:   "https://vnative.dev/docs/errors/E180",
	},
	"E181": {
		Category: CategoryDevkit,
		Message:  "Exception archive failed",
		Detail:   "An exception report could not be uploaded to the archive bucket.",
		DocURL:   "https://vnative.dev/docs/errors/E181",
	},
	"E182": {
		Category: CategoryDevkit,
		Message:  "Devkit unreachable",
		Detail:   "Could not connect to the devkit WebSocket endpoint.",
		DocURL:   "https://vnative.dev/docs/errors/E182",
	},

	// ============================================
	// CLI Errors (E200-E219)
	// ============================================

	"E200": {
		Category: CategoryCLI,
		Message:  "Port in use",
		Detail:   "The requested listen address is already in use.",
		DocURL:   "https://vnative.dev/docs/errors/E200",
	},
	"E201": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
		Detail:   "A command line flag has an invalid value.",
		DocURL:   "https://vnative.dev/docs/errors/E201",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
