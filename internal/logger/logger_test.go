package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponent_TagsComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := Component("executor").Output(&buf)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"executor"`)
}

func TestGetLogger_IsIdempotent(t *testing.T) {
	first := GetLogger("streamcore")
	second := GetLogger("streamcore")
	assert.Equal(t, first.GetLevel(), second.GetLevel())
}
