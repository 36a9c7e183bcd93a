package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainduel/internal/config"
	"brainduel/internal/model"
)

func TestValidateQuestions(t *testing.T) {
	t.Run("accepts a valid set and reissues ids", func(t *testing.T) {
		in := makeQuestions(3)
		in[1].ID = ""
		out, err := validateQuestions(in, 3)
		require.NoError(t, err)
		require.Len(t, out, 3)
		for _, q := range out {
			assert.NotEmpty(t, q.ID)
		}
	})

	t.Run("duplicate model ids come out unique", func(t *testing.T) {
		// Models happily echo the schema example's "q1" for every question;
		// colliding ids would make a player's answer to the second question
		// look like a duplicate and stall the round.
		in := makeQuestions(3)
		in[1].ID = in[0].ID
		in[2].ID = in[0].ID
		out, err := validateQuestions(in, 3)
		require.NoError(t, err)
		seen := make(map[string]bool)
		for _, q := range out {
			require.NotEmpty(t, q.ID)
			assert.False(t, seen[q.ID], "question id %s repeated", q.ID)
			seen[q.ID] = true
		}
	})

	t.Run("truncates extras", func(t *testing.T) {
		out, err := validateQuestions(makeQuestions(5), 3)
		require.NoError(t, err)
		assert.Len(t, out, 3)
	})

	t.Run("rejects too few", func(t *testing.T) {
		_, err := validateQuestions(makeQuestions(2), 3)
		assert.Error(t, err)
	})

	t.Run("rejects wrong option count", func(t *testing.T) {
		in := makeQuestions(3)
		in[0].Options = []string{"A", "B"}
		_, err := validateQuestions(in, 3)
		assert.Error(t, err)
	})

	t.Run("rejects correct answer outside options", func(t *testing.T) {
		in := makeQuestions(3)
		in[2].CorrectAnswer = "E"
		_, err := validateQuestions(in, 3)
		assert.Error(t, err)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		in := makeQuestions(3)
		in[0].Text = ""
		_, err := validateQuestions(in, 3)
		assert.Error(t, err)
	})
}

func TestGenerateOfflineBank(t *testing.T) {
	svc := NewGeneratorService(config.AIConfig{}, testLogger())

	questions, err := svc.Generate(context.Background(), "Geography", 3)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	for _, q := range questions {
		assert.NotEmpty(t, q.ID)
		assert.Len(t, q.Options, model.OptionsPerQuestion)
		assert.True(t, q.HasOption(q.CorrectAnswer))
	}
}

func TestGenerateViaGemini(t *testing.T) {
	payload, err := json.Marshal(map[string]interface{}{
		"questions": makeQuestions(3),
	})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"parts": []map[string]string{
							{"text": string(payload)},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	svc := NewGeneratorService(config.AIConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		Model:     "gemini-2.0-flash",
		TimeoutMS: 2000,
	}, testLogger())

	questions, err := svc.Generate(context.Background(), "History", 3)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, "Question 1?", questions[0].Text)
}

func TestGenerateGeminiErrorSurfacesNoPartialResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := NewGeneratorService(config.AIConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL,
		Model:     "gemini-2.0-flash",
		TimeoutMS: 2000,
	}, testLogger())

	questions, err := svc.Generate(context.Background(), "History", 3)
	assert.Error(t, err)
	assert.Nil(t, questions)
}
