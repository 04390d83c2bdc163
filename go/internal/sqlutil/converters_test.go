package sqlutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullString(t *testing.T) {
	assert.False(t, ToNullString("").Valid)
	assert.Equal(t, "classic", FromNullString(ToNullString("classic")))
	assert.Equal(t, "", FromNullString(ToNullString("")))
}

func TestNullRawMessage(t *testing.T) {
	assert.False(t, ToNullRawMessage(nil).Valid)
	doc := json.RawMessage(`[{"key":"A"}]`)
	assert.Equal(t, doc, FromNullRawMessage(ToNullRawMessage(doc)))
	assert.Nil(t, FromNullRawMessage(ToNullRawMessage(json.RawMessage{})))
}
