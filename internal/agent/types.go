package agent

import (
	"context"
)

// Transcriber converts a chunk of caller audio (PCM16 little-endian mono
// 16kHz) into text. An empty string means silence.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Speaker plays text back to the caller. Fire-and-forget from the session's
// perspective; implementations own pacing and delivery.
type Speaker interface {
	Speak(text string)
}

// AnswerResolver maps a caller question to an answer. It never fails; total
// backend failure degrades to a safe fallback phrase.
type AnswerResolver interface {
	Resolve(ctx context.Context, question string) string
}

// Escalator hands an unanswerable question to a human supervisor. Escalate
// returns the request id and a channel that delivers the supervisor's
// answer; the channel is registered before the request is announced, so an
// immediate resolve is never lost. Callers that stop waiting call Forget.
type Escalator interface {
	Escalate(question, callerID string) (uint, <-chan string, error)
	Forget(id uint)
}
