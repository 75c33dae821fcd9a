package ferrors

// ManagementCode is a numeric id surfaced to the (out-of-scope) management
// REST layer, per spec §6. The core never returns these directly; a thin
// translation layer at the HTTP boundary would use MapManagement to turn a
// registry/ops error into one of these ids plus a human message.
type ManagementCode int

const (
	MgmtDefault ManagementCode = iota
	MgmtInvalidFSName
	MgmtFSExist
	MgmtFSNonexist
	MgmtFSExportExist
	MgmtFSNotEmpty
	MgmtInvalidETag
	MgmtBadDigest
	MgmtMissingETag
	MgmtInvalidPayload
	MgmtInvalidPathParams
)

var managementMessages = map[ManagementCode]string{
	MgmtDefault:            "internal error",
	MgmtInvalidFSName:      "invalid filesystem name",
	MgmtFSExist:            "filesystem already exists",
	MgmtFSNonexist:         "filesystem does not exist",
	MgmtFSExportExist:      "filesystem is already exported",
	MgmtFSNotEmpty:         "filesystem is not empty",
	MgmtInvalidETag:        "invalid etag",
	MgmtBadDigest:          "payload digest mismatch",
	MgmtMissingETag:        "missing etag",
	MgmtInvalidPayload:     "invalid request payload",
	MgmtInvalidPathParams:  "invalid path parameters",
}

// Message returns the human-readable message for a management code.
func (m ManagementCode) Message() string {
	if msg, ok := managementMessages[m]; ok {
		return msg
	}
	return managementMessages[MgmtDefault]
}

// RegistryErrorCode maps a registry-layer sentinel (see registry package
// doc comments for which ops raise which of these) onto a ManagementCode.
// It is keyed by Code plus a hint because the same Code (e.g. Invalid) can
// mean different things to the REST layer depending on which registry call
// raised it; registry functions should use New(op, ...) with op values that
// match the switch below.
func RegistryErrorCode(op string, code Code) ManagementCode {
	switch {
	case op == "fs_create" && code == Invalid:
		return MgmtInvalidFSName
	case op == "fs_create" && code == AlreadyExists:
		return MgmtFSExist
	case code == NotFound && (op == "fs_delete" || op == "endpoint_delete" || op == "lookup"):
		return MgmtFSNonexist
	case op == "fs_delete" && code == NotEmpty:
		return MgmtFSNotEmpty
	case op == "endpoint_create" && code == AlreadyExists:
		return MgmtFSExportExist
	default:
		return MgmtDefault
	}
}
