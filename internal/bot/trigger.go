package bot

import "strings"

// Kind selects which collaborator operation a triggered message runs.
type Kind string

const (
	KindChat  Kind = "chat"
	KindImage Kind = "image"
)

// Recognized trigger prefixes. A text message starting with one of these
// schedules an asynchronous bot reply.
const (
	TriggerChat  = "@gpt"
	TriggerImage = "@dall-e"
)

// Detect reports whether content carries a trigger prefix and which branch it
// selects. The prefix must be the very first bytes of the message; leading
// whitespace defuses the trigger. The raw content, prefix included, is what
// the job forwards to the collaborator.
func Detect(content string) (Kind, bool) {
	switch {
	case strings.HasPrefix(content, TriggerImage):
		return KindImage, true
	case strings.HasPrefix(content, TriggerChat):
		return KindChat, true
	}
	return "", false
}
