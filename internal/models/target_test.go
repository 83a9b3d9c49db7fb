package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "someuser", "someuser"},
		{"uppercase", "SomeUser", "someuser"},
		{"leading marker", "@someuser", "someuser"},
		{"whitespace", "  someuser \n", "someuser"},
		{"marker then whitespace", "@ someuser", "someuser"},
		{"everything", "  @Some.User_1  ", "some.user_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUsername(tt.input))
		})
	}
}

func TestNormalizeUsernameIdempotent(t *testing.T) {
	inputs := []string{"@User ", "plain", "  @MiXeD.case_ ", "@@double"}
	for _, in := range inputs {
		once := NormalizeUsername(in)
		assert.Equal(t, once, NormalizeUsername(once), "normalize must be idempotent for %q", in)
	}
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("some.user_1"))
	assert.True(t, ValidUsername("a-b"))
	assert.False(t, ValidUsername(""))
	assert.False(t, ValidUsername("has space"))
	assert.False(t, ValidUsername("UpperCase")) // must be normalized first
}
