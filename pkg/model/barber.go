package model

import "slices"

type Barber struct {
	ID         string   `json:"id" bson:"_id" toml:"id" validate:"required,alphanum,min=2,max=40"`
	Name       string   `json:"name" bson:"name" toml:"name" validate:"required,min=1,max=100"`
	Active     bool     `json:"active" bson:"active" toml:"active"`
	ServiceIDs []string `json:"service_ids" bson:"service_ids" toml:"services" validate:"required,min=1,dive,required"`
}

func (b Barber) Offers(serviceID string) bool {
	return slices.Contains(b.ServiceIDs, serviceID)
}
