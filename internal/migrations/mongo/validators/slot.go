package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"barber_id",
			"start_time",
			"duration_min",
			"state",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 3,
			},

			"barber_id": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 40,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"duration_min": bson.M{
				"bsonType": bson.A{"int", "long"},
				"minimum":  5,
				"maximum":  480,
			},

			"state": bson.M{
				"enum": []string{"free", "held", "booked"},
			},

			"held_by": bson.M{
				"bsonType": "string",
			},

			"hold_expires_at": bson.M{
				"bsonType": "date",
			},

			"appointment_id": bson.M{
				"bsonType": "string",
			},
		},
	},
}
