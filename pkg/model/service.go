package model

import (
	"fmt"
	"time"
)

// Service is a bookable offering. ID is a stable upper-case code such as
// HAIRCUT that the extractor normalizes caller phrasing onto.
type Service struct {
	ID          string   `json:"id" bson:"_id" toml:"id" validate:"required,uppercase,min=2,max=40"`
	Name        string   `json:"name" bson:"name" toml:"name" validate:"required,min=2,max=100"`
	DurationMin int      `json:"duration_min" bson:"duration_min" toml:"duration_min" validate:"required,min=5,max=480"`
	PriceCents  int      `json:"price_cents" bson:"price_cents" toml:"price_cents" validate:"min=0"`
	Description string   `json:"description" bson:"description" toml:"description" validate:"required"`
	Aliases     []string `json:"aliases,omitempty" bson:"aliases,omitempty" toml:"aliases"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMin) * time.Minute
}

// PriceText renders the price the way it is read to a caller: "$30" or "$12.50".
func (s Service) PriceText() string {
	if s.PriceCents%100 == 0 {
		return fmt.Sprintf("$%d", s.PriceCents/100)
	}
	return fmt.Sprintf("$%d.%02d", s.PriceCents/100, s.PriceCents%100)
}
