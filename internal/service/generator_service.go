package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"brainduel/internal/config"
	"brainduel/internal/model"
)

// GeneratorService produces the multiple-choice questions for a round via the
// Gemini API. Generation either returns a fully valid question set or an
// error; partial results are never surfaced, so a failed call leaves the round
// untouched and retryable.
type GeneratorService struct {
	config config.AIConfig
	client *http.Client
	log    *logrus.Logger
}

// NewGeneratorService creates a new question generator.
func NewGeneratorService(cfg config.AIConfig, log *logrus.Logger) *GeneratorService {
	return &GeneratorService{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
		log: log,
	}
}

// Generate returns count questions for the category. Without an API key it
// serves a deterministic local bank so the game stays playable in development.
func (s *GeneratorService) Generate(ctx context.Context, category string, count int) ([]model.Question, error) {
	if !s.config.IsEnabled() {
		return s.localQuestions(category, count), nil
	}

	prompt := s.buildPrompt(category, count)
	response, err := s.callGemini(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("question generation failed: %w", err)
	}

	var out struct {
		Questions []model.Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(response), &out); err != nil {
		return nil, fmt.Errorf("malformed generation response: %w", err)
	}

	questions, err := validateQuestions(out.Questions, count)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// validateQuestions enforces the question shape: exactly count questions, four
// options each, and a correct answer that is one of the options. Every
// question is reissued a unique id.
func validateQuestions(questions []model.Question, count int) ([]model.Question, error) {
	if len(questions) < count {
		return nil, fmt.Errorf("generator returned %d questions, want %d", len(questions), count)
	}
	questions = questions[:count]
	for i := range questions {
		q := &questions[i]
		// Answers key on the question id, so ids must be unique; the model's
		// ids are discarded in favor of fresh ones.
		q.ID = uuid.New().String()
		if q.Text == "" {
			return nil, fmt.Errorf("question %d has empty text", i+1)
		}
		if len(q.Options) != model.OptionsPerQuestion {
			return nil, fmt.Errorf("question %d has %d options, want %d", i+1, len(q.Options), model.OptionsPerQuestion)
		}
		if !q.HasOption(q.CorrectAnswer) {
			return nil, fmt.Errorf("question %d correct answer is not among its options", i+1)
		}
	}
	return questions, nil
}

func (s *GeneratorService) buildPrompt(category string, count int) string {
	return fmt.Sprintf(`You are an expert quiz master. Generate %d questions for the category "%s".
For each question, provide 4 options and identify the correct answer.
Ensure the questions are challenging but not obscure.
Vary the difficulty of the questions.
Return ONLY valid JSON matching this schema:
{
  "questions": [
    {"id": "q1", "text": "...", "options": ["...", "...", "...", "..."], "correctAnswer": "..."}
  ]
}`, count, category)
}

func (s *GeneratorService) callGemini(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]string{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s?key=%s", s.config.ModelEndpoint(), s.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", err
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		return geminiResp.Candidates[0].Content.Parts[0].Text, nil
	}

	return "", fmt.Errorf("empty response from Gemini")
}

// localQuestions is the offline question bank used when no API key is set.
func (s *GeneratorService) localQuestions(category string, count int) []model.Question {
	bank := []model.Question{
		{
			Text:          fmt.Sprintf("Which of these is most associated with %s?", category),
			Options:       []string{"Paris", "Atlantis", "Mordor", "Narnia"},
			CorrectAnswer: "Paris",
		},
		{
			Text:          "Which planet is known as the Red Planet?",
			Options:       []string{"Venus", "Mars", "Jupiter", "Saturn"},
			CorrectAnswer: "Mars",
		},
		{
			Text:          `Who wrote "To Kill a Mockingbird"?`,
			Options:       []string{"Harper Lee", "Mark Twain", "Jane Austen", "George Orwell"},
			CorrectAnswer: "Harper Lee",
		},
		{
			Text:          "What is the chemical symbol for gold?",
			Options:       []string{"Ag", "Au", "Gd", "Go"},
			CorrectAnswer: "Au",
		},
	}

	questions := make([]model.Question, 0, count)
	for i := 0; i < count; i++ {
		q := bank[i%len(bank)]
		q.ID = uuid.New().String()
		questions = append(questions, q)
	}
	return questions
}
