package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestMock(t *testing.T) {
	l := Mock()

	assert.NotNil(t, l)
	assert.Equal(t, zerolog.Disabled, l.(*DefaultLogger).log.GetLevel())
	assert.NotPanics(t, func() {
		l.Info().Msg("discarded")
		l.Err(nil).Msg("discarded")
		sub := l.With().Str("module", "test").Logger()
		sub.Debug().Msg("discarded")
	})
}
