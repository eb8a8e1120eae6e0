package mongo

import (
	"testing"

	"barberline/internal/availability/repository"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCollectionsCoverRepositories(t *testing.T) {
	defs := collections()

	for _, name := range []string{
		repository.SlotCollectionName,
		repository.AppointmentCollectionName,
		repository.BarberCollectionName,
		repository.ServiceCollectionName,
	} {
		def, ok := defs[name]
		if assert.True(t, ok, name) {
			assert.Contains(t, def.Validator, "$jsonSchema", name)
		}
	}
}

func TestAppointmentValidatorRequiresBookingFields(t *testing.T) {
	schema := defsSchema(t, repository.AppointmentCollectionName)
	required, ok := schema["required"].([]string)
	if !assert.True(t, ok) {
		return
	}
	for _, field := range []string{"customer_name", "phone", "slot_id", "status"} {
		assert.Contains(t, required, field)
	}
}

func defsSchema(t *testing.T, name string) bson.M {
	t.Helper()
	schema, ok := collections()[name].Validator["$jsonSchema"].(bson.M)
	if !ok {
		t.Fatalf("%s has no schema", name)
	}
	return schema
}
