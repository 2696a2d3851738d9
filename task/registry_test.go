package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listedWorkflow struct {
	recordingWorkflow
}

func (listedWorkflow) ID() string { return "com.example.listed" }

func (listedWorkflow) ConfigNames() []string {
	return []string{ConfigIBAN, ConfigOAuthClientSecret, ConfigOAuthClientID}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(func() Workflow { return &listedWorkflow{} })
	r.RegisterHidden(func() Workflow { return &recordingWorkflow{} })

	t.Run("builds registered workflows", func(t *testing.T) {
		w, err := r.New("com.example.listed")
		require.NoError(t, err)
		assert.Equal(t, "com.example.listed", w.ID())

		w, err = r.New("com.example.recording")
		require.NoError(t, err)
		assert.Equal(t, "com.example.recording", w.ID())
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := r.New("com.example.unknown")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("listing hides hidden entries and sorts configs", func(t *testing.T) {
		listing := r.List()
		require.Len(t, listing, 1)
		assert.Equal(t, "com.example.listed", listing[0].ID)
		assert.Equal(t, []string{"IBAN", "OAuthClientId", "OAuthClientSecret"}, listing[0].Configs)
	})
}
