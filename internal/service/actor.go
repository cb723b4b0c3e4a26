package service

import (
	"context"
	"time"

	"mesapos/internal/dto"
	"mesapos/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated caller, resolved from the JWT by middleware.
type Actor struct {
	ID  uuid.UUID
	Rol model.Rol
}

func (a Actor) usuarioID() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}

// Publicador receives events strictly after the transaction that produced them
// committed. Implementations must not block and never fail the caller.
type Publicador interface {
	Publicar(ctx context.Context, ev dto.Evento)
}

type noopPublicador struct{}

func (noopPublicador) Publicar(context.Context, dto.Evento) {}

// Reloj returns the current time. All persisted timestamps come from it.
type Reloj func() time.Time

func relojUTC() time.Time { return time.Now().UTC() }

func publicadorOrNoop(p Publicador) Publicador {
	if p == nil {
		return noopPublicador{}
	}
	return p
}

const isoFormat = "2006-01-02T15:04:05Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(isoFormat) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
