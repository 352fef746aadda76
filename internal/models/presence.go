package models

import (
	"encoding/json"
	"time"
)

// Presence - признак мягкого удаления: Active или Deleted(at).
type Presence struct {
	deletedAt time.Time
}

// Active возвращает признак активной сущности.
func Active() Presence {
	return Presence{}
}

// Deleted возвращает признак сущности, удаленной в момент at.
func Deleted(at time.Time) Presence {
	return Presence{deletedAt: at.UTC()}
}

// PresenceFrom строит признак из nullable-колонки deleted_at.
func PresenceFrom(deletedAt *time.Time) Presence {
	if deletedAt == nil {
		return Active()
	}
	return Deleted(*deletedAt)
}

func (p Presence) IsDeleted() bool {
	return !p.deletedAt.IsZero()
}

// DeletedAt возвращает момент удаления, если сущность удалена.
func (p Presence) DeletedAt() (time.Time, bool) {
	return p.deletedAt, p.IsDeleted()
}

// Column возвращает значение для колонки deleted_at.
func (p Presence) Column() *time.Time {
	if !p.IsDeleted() {
		return nil
	}
	at := p.deletedAt
	return &at
}

func (p Presence) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Column())
}
