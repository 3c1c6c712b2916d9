// Package messages entrega mensajes para el usuario final durante un
// request (equivalente al flash de un framework web).
//
// El handler HTTP crea un Recorder por request con WithRecorder; los
// servicios escriben con el Sink que reciben y el handler devuelve lo
// acumulado en la respuesta.
package messages

import (
	"context"
	"sync"

	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
)

// Level de un mensaje.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Message es un mensaje para el usuario.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Sink recibe mensajes para el usuario del request en curso.
type Sink interface {
	Add(ctx context.Context, level Level, text string)
}

// Recorder acumula los mensajes de un request.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) add(m Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

// Messages retorna una copia de lo acumulado.
func (r *Recorder) Messages() []Message {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// Texts retorna sólo los textos.
func (r *Recorder) Texts() []string {
	msgs := r.Messages()
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

type ctxKey struct{}

// WithRecorder agrega un Recorder nuevo al contexto.
func WithRecorder(ctx context.Context) (context.Context, *Recorder) {
	rec := &Recorder{}
	return context.WithValue(ctx, ctxKey{}, rec), rec
}

// FromContext retorna el Recorder del contexto o nil.
func FromContext(ctx context.Context) *Recorder {
	rec, _ := ctx.Value(ctxKey{}).(*Recorder)
	return rec
}

// ContextSink escribe en el Recorder del contexto. Sin Recorder el mensaje
// sólo se loguea.
type ContextSink struct{}

func (ContextSink) Add(ctx context.Context, level Level, text string) {
	if rec := FromContext(ctx); rec != nil {
		rec.add(Message{Level: level, Text: text})
		return
	}
	logger.From(ctx).Debug("user message without recorder",
		logger.String("level", string(level)),
		logger.String("text", text),
	)
}

// Error es un atajo para LevelError.
func Error(ctx context.Context, s Sink, text string) {
	if s == nil {
		s = ContextSink{}
	}
	s.Add(ctx, LevelError, text)
}
