package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ensureID assigns a client-side UUID so inserts do not depend on a database
// default (SQLite has no gen_random_uuid).
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (p *Product) BeforeCreate(*gorm.DB) error     { ensureID(&p.ID); return nil }
func (c *Customer) BeforeCreate(*gorm.DB) error    { ensureID(&c.ID); return nil }
func (u *User) BeforeCreate(*gorm.DB) error        { ensureID(&u.ID); return nil }
func (s *Sale) BeforeCreate(*gorm.DB) error        { ensureID(&s.ID); return nil }
func (i *SaleItem) BeforeCreate(*gorm.DB) error    { ensureID(&i.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error { ensureID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error   { ensureID(&d.ID); return nil }
