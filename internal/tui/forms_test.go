package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequired(t *testing.T) {
	assert.ErrorIs(t, required(""), errRequired)
	assert.ErrorIs(t, required("   "), errRequired)
	assert.NoError(t, required("ada"))
}

func TestCredentialsSkipsPromptWhenComplete(t *testing.T) {
	user, pass, err := Credentials("Log in", "ada", "secret")
	assert.NoError(t, err)
	assert.Equal(t, "ada", user)
	assert.Equal(t, "secret", pass)
}

func TestResolveThemeNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, NoColorTheme(), ResolveTheme())
}

func TestDefaultThemeHasColors(t *testing.T) {
	theme := DefaultTheme()
	assert.NotEmpty(t, theme.Primary.Dark)
	assert.NotEmpty(t, theme.Error.Light)
}
