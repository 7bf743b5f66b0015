package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short kept", "Check weld", "Check weld"},
		{"exactly thirty kept", "012345678901234567890123456789", "012345678901234567890123456789"},
		{"long truncated", "Inspect this bearing for wear patterns", "Inspect this bearing for wear ..."},
		{"counts characters not bytes", "Проверьте подшипник на износ уплотнения", "Проверьте подшипник на износ у..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.content))
		})
	}
}

func TestRolePersistable(t *testing.T) {
	assert.True(t, RoleUser.Persistable())
	assert.True(t, RoleAssistant.Persistable())
	assert.False(t, RoleSystem.Persistable())
	assert.False(t, Role("tool").Persistable())
}
