package sqlutil

import (
	"database/sql"
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// ToNullString maps "" to NULL.
func ToNullString(val string) sql.NullString {
	return sql.NullString{String: val, Valid: val != ""}
}

// FromNullString maps NULL to "".
func FromNullString(val sql.NullString) string {
	if !val.Valid {
		return ""
	}
	return val.String
}

// ToNullRawMessage maps an empty document to NULL.
func ToNullRawMessage(val json.RawMessage) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: val, Valid: len(val) > 0}
}

// FromNullRawMessage maps NULL to nil.
func FromNullRawMessage(val pqtype.NullRawMessage) json.RawMessage {
	if !val.Valid {
		return nil
	}
	return val.RawMessage
}
