package outbox

const activityCreatedSchema = `{
  "type": "object",
  "title": "ActivityCreated",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "name": {"type": "string"},
    "country": {"type": "string"},
    "city": {"type": "string"},
    "type": {"type": "string"},
    "price": {"type": "number", "minimum": 0},
    "created_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "name", "country", "city", "type", "price", "created_at"],
  "additionalProperties": false
}`

const activityUpdatedSchema = `{
  "type": "object",
  "title": "ActivityUpdated",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "fields": {"type": "array", "items": {"type": "string"}},
    "updated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "fields", "updated_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "deleted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "deleted_at"],
  "additionalProperties": false
}`

const favouriteAddedSchema = `{
  "type": "object",
  "title": "FavouriteAdded",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "added_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "added_at"],
  "additionalProperties": false
}`
