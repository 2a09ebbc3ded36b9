package errors

import "strings"

const (
	playbackErrorPrefix = "Theater playback error."

	nvidiaFastSyncMarker  = "Unexpected error code (10)"
	mediaFoundationMarker = "It seems that the Microsoft Media Foundation is not installed on this machine"

	// IgnoredBackendError is emitted by the backend when an empty URL is
	// played; it carries no information for the user.
	IgnoredBackendError = "Can't play movie []"
)

// UserMessage maps a raw backend error to the message shown to the user.
func UserMessage(backendMessage, gpuVendor string) string {
	switch {
	case strings.Contains(backendMessage, nvidiaFastSyncMarker) && gpuVendor == "NVIDIA":
		return playbackErrorPrefix + " Try disabling NVIDIA Fast Sync."
	case strings.Contains(backendMessage, mediaFoundationMarker):
		return playbackErrorPrefix + " Install Microsoft Media Foundation."
	default:
		return playbackErrorPrefix + " See logs for details."
	}
}

// IsIgnoredBackendError reports backend errors that should be dropped.
func IsIgnoredBackendError(message string) bool {
	return message == IgnoredBackendError
}
