// Package answer turns retrieved chunks into a grounded answer.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/verseware/studyrag/internal/llm"
	"github.com/verseware/studyrag/internal/models"
)

const systemInstruction = `You are a helpful Bible study assistant. Use the following pieces of context from Bible study materials to answer the question.
If you don't know the answer based on the provided context, just say that you don't have enough information in the materials to answer that question.
Don't try to make up an answer.`

// noMaterialAnswer is returned without calling the generation service when
// retrieval produced nothing. Required branch: never invent an answer from
// an empty context.
const noMaterialAnswer = "No relevant material was found in the study library for this question."

// Composer assembles the grounded prompt and invokes the generator.
type Composer struct {
	generator llm.Generator
	logger    *zap.Logger
}

// New creates a composer. logger may be nil.
func New(generator llm.Generator, logger *zap.Logger) *Composer {
	return &Composer{generator: generator, logger: logger}
}

// Compose builds a single prompt from the retrieved chunks in order, each
// tagged with its source, and asks the generation service once. Sources are
// deduplicated preserving first appearance.
func (c *Composer) Compose(ctx context.Context, question string, retrieved []models.ScoredChunk) (models.Answer, error) {
	if len(retrieved) == 0 {
		return models.Answer{Text: noMaterialAnswer}, nil
	}

	prompt := buildPrompt(question, retrieved)
	if c.logger != nil {
		c.logger.Debug("composed prompt",
			zap.Int("chunks", len(retrieved)),
			zap.Int("prompt_len", len(prompt)),
		)
	}

	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return models.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	return models.Answer{
		Text:    strings.TrimSpace(text),
		Sources: models.SourcesOf(retrieved),
	}, nil
}

func buildPrompt(question string, retrieved []models.ScoredChunk) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\nContext:\n")
	for _, sc := range retrieved {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", sc.SourceID, sc.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer: ")
	return b.String()
}
