package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	AnswerYes = "Yes"
	AnswerNo  = "No"
)

var ErrInvalidQuestion = errors.New("invalid question")

// Question is the yes/no prop broadcast while a lobby is active.
type Question struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Tip           string    `json:"tip,omitempty"`
	CorrectAnswer string    `json:"correct_answer"`
	PublishedAt   time.Time `json:"published_at"`
}

// NormalizeAnswer maps a case-insensitive yes/no choice onto its canonical
// form. ok is false for anything else.
func NormalizeAnswer(choice string) (answer string, ok bool) {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "yes":
		return AnswerYes, true
	case "no":
		return AnswerNo, true
	}
	return "", false
}

// ParseQuestion validates a raw payload and returns a normalised question.
// ID and PublishedAt are left to the publisher.
func ParseQuestion(text, tip, correctAnswer string) (Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Question{}, errors.Join(ErrInvalidQuestion, errors.New("text is required"))
	}
	answer, ok := NormalizeAnswer(correctAnswer)
	if !ok {
		return Question{}, errors.Join(ErrInvalidQuestion, errors.New("correct answer must be Yes or No"))
	}
	return Question{
		Text:          text,
		Tip:           strings.TrimSpace(tip),
		CorrectAnswer: answer,
	}, nil
}

// Key derives the content identity of the question. Any change of content,
// including a republish under a new ID, yields a new key.
func (q *Question) Key() string {
	if q == nil {
		return ""
	}
	b, err := json.Marshal(q)
	if err != nil {
		// Question only holds strings and a time, Marshal cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// IsCorrect reports whether choice matches the correct answer, ignoring case.
func (q *Question) IsCorrect(choice string) bool {
	return strings.EqualFold(strings.TrimSpace(choice), q.CorrectAnswer)
}
