package goSession

import (
	"context"
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
)

// Identity is what the directory knows about a subject.
type Identity struct {
	ID     string
	Role   string
	Active bool
}

// UserDirectory is the user persistence collaborator. Implementations own user
// records and password hashing; the engine only asks these two questions.
type UserDirectory interface {
	// Resolve returns the identity for subjectID, or ErrIdentityNotFound.
	Resolve(ctx context.Context, subjectID string) (Identity, error)
	// VerifyCredentials returns the identity when secret matches identifier.
	// Any failure, including an unknown identifier, is an error.
	VerifyCredentials(ctx context.Context, identifier, secret string) (Identity, error)
}

// ResetDirectory is the optional capability needed by the password-reset
// workflow. The UserDirectory passed to the Builder must implement it when
// PasswordReset.Enabled is set.
type ResetDirectory interface {
	LookupIdentifier(ctx context.Context, identifier string) (Identity, error)
	UpdateSecret(ctx context.Context, userID, newSecret string) error
}

// AuthResult describes an authorized request.
type AuthResult struct {
	UserID string
	// Role is the role the decision was made on.
	Role    string
	TokenID string
	Claims  *jwt.Claims
}

// AuditEvent is a structured record of a security-relevant operation.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink writes audit events through a structured logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink logging through logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
