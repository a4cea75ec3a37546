package models

// Fixed user-facing reply strings. Failures of external collaborators are
// always converted to one of these; raw errors never reach the user.
const (
	// ReplyEmergency is sent on the emergency path. It must not depend on the
	// inference adapter being reachable.
	ReplyEmergency = "Emergency services have been notified. Stay calm and wait for assistance."
	// ReplyHistoryCleared confirms the clear-history control phrase succeeded.
	ReplyHistoryCleared = "Chat history has been cleared successfully."
	// ReplyHistoryClearFailed is sent when clearing memory or vectors failed.
	ReplyHistoryClearFailed = "Sorry, there was an error clearing the chat history."
	// ReplyReportSending confirms a report was generated and is on its way.
	ReplyReportSending = "I've prepared your medical history report and am sending it now."
	// ReplyReportFailed is sent when report generation or delivery failed.
	ReplyReportFailed = "Sorry, I couldn't generate your report. Please try again later."
	// ReplyNoHistory is sent when a report was requested but no entries exist.
	ReplyNoHistory = "No medical history found."
	// ReplyGenericApology covers failures on the general text path.
	ReplyGenericApology = "I apologize, but I encountered an error processing your request. Please try again later."
	// ReplyImageApology covers failures anywhere on the image path.
	ReplyImageApology = "I encountered an error processing your image. Please try again."
	// ReplyAudioApology covers transcription failures on the audio path.
	ReplyAudioApology = "Sorry, I couldn't process that audio message. Could you try again?"
)

// ControlPhraseClearHistory is the reserved control phrase that wipes a user's
// conversation memory and stored vector entries. Matched exactly after
// trimming and lowercasing, distinct from general conversational input.
const ControlPhraseClearHistory = "clear chat history"
