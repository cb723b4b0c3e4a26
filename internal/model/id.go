package model

import "github.com/google/uuid"

// asignarID fills a zero primary key before insert. The postgres schema also
// defaults to gen_random_uuid(), but the id is generated here so the same
// models run on sqlite in tests.
func asignarID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
