package validators

import "go.mongodb.org/mongo-driver/bson"

var BarberValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "name", "active", "service_ids"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 40,
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"active": bson.M{
				"bsonType": "bool",
			},
			"service_ids": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "string",
				},
			},
		},
	},
}

var ServiceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "name", "duration_min", "price_cents", "description"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 40,
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},
			"duration_min": bson.M{
				"bsonType": bson.A{"int", "long"},
				"minimum":  5,
				"maximum":  480,
			},
			"price_cents": bson.M{
				"bsonType": bson.A{"int", "long"},
				"minimum":  0,
			},
			"description": bson.M{
				"bsonType": "string",
			},
			"aliases": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
				},
			},
		},
	},
}
