package model

// Content is the tagged variant behind Message.Content. Exactly one
// concrete type exists per message shape; rendering code switches on it
// exhaustively instead of re-parsing the body at each call site.
type Content interface {
	isContent()
}

// TextContent is the body of a plain text message.
type TextContent struct {
	Text string
}

// FileContent describes an attachment, optionally a voice clip.
type FileContent struct {
	FileName    string
	FileSize    int64
	ContentType string
	MediaKey    string
	// Duration is the clip length in seconds when Voice is set.
	Duration int
	Voice    bool
}

func (TextContent) isContent() {}
func (FileContent) isContent() {}

// Content classifies the message body. File bodies are parsed as a
// FileEnvelope with the bare-filename fallback applied.
func (m *Message) Content() Content {
	if m.Type != MessageTypeFile {
		return TextContent{Text: m.Body}
	}
	env := ParseFileEnvelope(m.Body)
	mediaKey := env.MediaKey
	if mediaKey == "" {
		mediaKey = m.MediaKey
	}
	return FileContent{
		FileName:    env.FileName,
		FileSize:    env.FileSize,
		ContentType: env.FileType,
		MediaKey:    mediaKey,
		Duration:    env.Duration,
		Voice:       env.IsVoiceMessage,
	}
}
