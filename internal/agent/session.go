// Package agent runs the caller-facing conversation loop: audio in,
// transcription, answer resolution, escalation, speech out.
package agent

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
)

const (
	// Greeting is spoken once when the session starts.
	Greeting = "Hello! I'm Bella from Bella's Salon. How can I help you today?"
	// EscalationReply is spoken when a question is handed to the supervisor.
	EscalationReply = "Let me check with my supervisor and get back to you."
	// FailureReply is spoken when even escalation fails; the caller must
	// always hear something.
	FailureReply = "I'm having some trouble answering that. Let me connect you with someone who can help."

	sampleRate    = 16000
	chunkDuration = 1500 * time.Millisecond
	// chunkBytes is chunkDuration of PCM16 mono at sampleRate.
	chunkBytes = int(sampleRate*2) * int(chunkDuration/time.Millisecond) / 1000

	readInterval      = 500 * time.Millisecond
	transcribeTimeout = 10 * time.Second
)

var uncertaintyPhrases = []string{"i don't know", "check with", "supervisor"}

// IsUncertain reports whether an answer signals the assistant cannot help,
// by keyword containment on the lowered text. Not a confidence score.
func IsUncertain(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// Session orchestrates one caller conversation.
type Session struct {
	callerID    string
	transcriber Transcriber
	resolver    AnswerResolver
	escalation  Escalator
	speaker     Speaker

	// followUpWait bounds how long a live call waits for a supervisor
	// answer after an escalation. Zero disables in-call follow-up.
	followUpWait time.Duration

	mu  sync.Mutex
	buf []byte

	wg sync.WaitGroup
}

func NewSession(callerID string, t Transcriber, r AnswerResolver, e Escalator, s Speaker) *Session {
	return &Session{
		callerID:     callerID,
		transcriber:  t,
		resolver:     r,
		escalation:   e,
		speaker:      s,
		followUpWait: 10 * time.Minute,
	}
}

// FeedPCM appends caller audio to the session buffer. Safe for concurrent
// use with the processing loop.
func (s *Session) FeedPCM(pcm []byte) {
	s.mu.Lock()
	s.buf = append(s.buf, pcm...)
	s.mu.Unlock()
}

// Start greets the caller and begins the audio processing loop. The
// returned stop function cancels in-flight work and waits for the loop to
// drain; escalations already created stay valid after teardown.
func (s *Session) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	s.speaker.Speak(Greeting)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(readInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					chunk := s.takeChunk()
					if chunk == nil {
						break
					}
					s.processChunk(ctx, chunk)
				}
			}
		}
	}()

	return func() {
		cancel()
		s.wg.Wait()
	}
}

func (s *Session) takeChunk() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < chunkBytes {
		return nil
	}
	chunk := make([]byte, chunkBytes)
	copy(chunk, s.buf[:chunkBytes])
	s.buf = s.buf[chunkBytes:]
	return chunk
}

func (s *Session) processChunk(ctx context.Context, chunk []byte) {
	tctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	text, err := s.transcriber.Transcribe(tctx, chunk)
	cancel()
	if err != nil {
		log.Printf("[%s] transcription failed: %v", s.callerID, err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	log.Printf("[%s] heard: %s", s.callerID, text)
	reply := s.Respond(ctx, text)
	log.Printf("[%s] reply: %s", s.callerID, reply)
	s.speaker.Speak(reply)
}

// Respond produces the spoken reply for one caller question. Uncertain
// answers are escalated and replaced with the fixed escalation phrase; an
// escalation failure still yields a spoken reply.
func (s *Session) Respond(ctx context.Context, question string) string {
	answer := s.resolver.Resolve(ctx, question)
	if !IsUncertain(answer) {
		return answer
	}

	id, ch, err := s.escalation.Escalate(question, s.callerID)
	if err != nil {
		log.Printf("[%s] escalation failed: %v", s.callerID, err)
		return FailureReply
	}
	if s.followUpWait > 0 {
		s.wg.Add(1)
		go s.awaitSupervisor(ctx, id, ch)
	} else {
		s.escalation.Forget(id)
	}
	return EscalationReply
}

// awaitSupervisor speaks the supervisor's answer if it arrives while the
// call is still live. On timeout or teardown the waiter is dropped; the
// answer still lands in the learned corpus either way.
func (s *Session) awaitSupervisor(ctx context.Context, id uint, ch <-chan string) {
	defer s.wg.Done()
	select {
	case <-ctx.Done():
		s.escalation.Forget(id)
	case <-time.After(s.followUpWait):
		s.escalation.Forget(id)
	case answer, ok := <-ch:
		if ok && answer != "" {
			s.speaker.Speak("I checked with my supervisor: " + answer)
		}
	}
}
