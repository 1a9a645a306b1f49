package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.False(t, RoleSystem.Valid())
	assert.False(t, Role("tool").Valid())
}

func TestParseLanguage(t *testing.T) {
	lang, ok := ParseLanguage("en")
	assert.True(t, ok)
	assert.Equal(t, LanguageEN, lang)

	_, ok = ParseLanguage("fr")
	assert.False(t, ok)
	_, ok = ParseLanguage("EN")
	assert.False(t, ok)
}

func TestLocalTimeJSON(t *testing.T) {
	ts := time.Date(2024, 5, 1, 8, 30, 0, 0, time.Local)
	b, err := json.Marshal(LocalTime(ts))
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01 08:30:00"`, string(b))

	var back LocalTime
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, ts.Equal(time.Time(back)))
}
