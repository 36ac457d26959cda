// -- cmd/cmd_test.go --
package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirelock/uipilot/internal/config"
)

func TestInitializeConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	cfgFile = ""

	require.NoError(t, initializeConfig())

	assert.Equal(t, "gemini-2.5-flash", viper.GetString("llm.model"))
	assert.Equal(t, 25, viper.GetInt("loop.default_max_steps"))
	assert.True(t, viper.GetBool("browser.headless"))
}

func TestInitializeConfigEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	cfgFile = ""
	t.Setenv("UIPILOT_LOOP_DEFAULT_MAX_STEPS", "7")
	t.Setenv("UIPILOT_LLM_API_KEY", "env-key")

	require.NoError(t, initializeConfig())
	assert.Equal(t, 7, viper.GetInt("loop.default_max_steps"))

	loaded, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Loop.DefaultMaxSteps)
	assert.Equal(t, "env-key", loaded.LLM.APIKey)
}

func TestAssessCommandClassifiesActions(t *testing.T) {
	cfg = config.NewDefaultConfig()

	assessCmd := newAssessCmd()
	var out bytes.Buffer
	assessCmd.SetOut(&out)
	assessCmd.SetErr(&out)
	assessCmd.SetArgs([]string{"delete_file", "click_element"})

	require.NoError(t, assessCmd.Execute())
	assert.Contains(t, out.String(), `"HIGH"`)
	assert.Contains(t, out.String(), `"LOW"`)
	assert.Contains(t, out.String(), `"requires_confirmation": true`)
}

func TestAssessCommandRequiresArgs(t *testing.T) {
	cfg = config.NewDefaultConfig()

	assessCmd := newAssessCmd()
	var out bytes.Buffer
	assessCmd.SetOut(&out)
	assessCmd.SetErr(&out)
	assessCmd.SetArgs([]string{})

	assert.Error(t, assessCmd.Execute())
}

func TestResolveCommandRequiresSelector(t *testing.T) {
	cfg = config.NewDefaultConfig()

	resolveCmd := newResolveCmd()
	var out bytes.Buffer
	resolveCmd.SetOut(&out)
	resolveCmd.SetErr(&out)
	resolveCmd.SetArgs([]string{"--url", "http://example.invalid"})

	err := resolveCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector")
}

func TestRunCommandRequiresGoalArgument(t *testing.T) {
	cfg = config.NewDefaultConfig()

	runCmd := newRunCmd()
	var out bytes.Buffer
	runCmd.SetOut(&out)
	runCmd.SetErr(&out)
	runCmd.SetArgs([]string{"--url", "http://example.invalid"})

	assert.Error(t, runCmd.Execute())
}
