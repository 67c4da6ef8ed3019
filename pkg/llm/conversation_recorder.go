package llm

import (
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// ConversationRecorder receives one record per completed back-end call.
type ConversationRecorder interface {
	Record(conv *models.LLMConversation)
}

// TranscriptRecorder writes conversations as JSON lines on a background
// goroutine so recording never blocks a generation call.
type TranscriptRecorder struct {
	w      io.Writer
	logger *zap.Logger
	queue  chan *models.LLMConversation
	done   chan struct{}
}

// NewTranscriptRecorder starts a recorder writing to w.
// queueSize controls the buffer size; when full, records are dropped with a warning.
func NewTranscriptRecorder(w io.Writer, logger *zap.Logger, queueSize int) *TranscriptRecorder {
	if queueSize <= 0 {
		queueSize = 100
	}

	r := &TranscriptRecorder{
		w:      w,
		logger: logger.Named("transcript"),
		queue:  make(chan *models.LLMConversation, queueSize),
		done:   make(chan struct{}),
	}

	go r.processQueue()

	return r
}

// Record queues a conversation. Non-blocking.
func (r *TranscriptRecorder) Record(conv *models.LLMConversation) {
	select {
	case r.queue <- conv:
	default:
		r.logger.Warn("Transcript queue full, dropping entry",
			zap.String("id", conv.ID.String()),
			zap.String("model", conv.Model))
	}
}

// Close stops the recorder after every queued record has been written.
func (r *TranscriptRecorder) Close() {
	close(r.queue)
	<-r.done
}

func (r *TranscriptRecorder) processQueue() {
	defer close(r.done)

	enc := json.NewEncoder(r.w)
	for conv := range r.queue {
		if err := enc.Encode(conv); err != nil {
			r.logger.Error("Failed to write transcript entry",
				zap.String("id", conv.ID.String()),
				zap.Error(err))
		}
	}
}

var _ ConversationRecorder = (*TranscriptRecorder)(nil)
