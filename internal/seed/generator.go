// ABOUTME: Contact source for the loader: mock CSV rows, AI-generated contacts, or placeholders.
// ABOUTME: AI mode uses OpenAI and falls back to static placeholders on any error.

package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/sashabaranov/go-openai"

	"github.com/2389/dataloader/internal/mockdata"
)

const (
	defaultModel     = "gpt-5-mini"
	defaultBatchSize = 25
)

// Source names reported by Generator.Source.
const (
	SourceMock   = "mock"
	SourceAI     = "ai"
	SourceStatic = "static"
)

// ChatCompleter is the part of the OpenAI client the generator uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures a Generator.
type Options struct {
	// Mock rows take precedence over every other source when present.
	Mock []mockdata.MockContact

	APIKey    string
	Model     string
	BatchSize int

	// Client overrides the OpenAI client built from APIKey.
	Client ChatCompleter
}

// OptionsFromEnv reads OPENAI_API_KEY and OPENAI_MODEL.
func OptionsFromEnv() Options {
	return Options{
		APIKey: os.Getenv("OPENAI_API_KEY"),
		Model:  os.Getenv("OPENAI_MODEL"),
	}
}

// ContactData is the name and email of one contact to create.
type ContactData struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
}

// Generator hands out contacts. It draws every random choice from the
// caller's faker so a seeded run is reproducible.
type Generator struct {
	faker     *gofakeit.Faker
	mock      []mockdata.MockContact
	client    ChatCompleter
	useAI     bool
	model     string
	batchSize int
	batch     []ContactData
}

// NewGenerator creates a generator over the given random source.
func NewGenerator(faker *gofakeit.Faker, opts Options) *Generator {
	g := &Generator{
		faker:     faker,
		mock:      opts.Mock,
		model:     opts.Model,
		batchSize: opts.BatchSize,
	}
	if g.model == "" {
		g.model = defaultModel
	}
	if g.batchSize <= 0 {
		g.batchSize = defaultBatchSize
	}

	switch {
	case len(g.mock) > 0:
		log.Printf("Using %d mock contacts", len(g.mock))
	case opts.Client != nil:
		g.client = opts.Client
		g.useAI = true
	case opts.APIKey != "":
		g.client = openai.NewClient(opts.APIKey)
		g.useAI = true
		log.Printf("OpenAI API key found, using AI-generated contacts with model: %s", g.model)
	default:
		log.Println("No mock contacts or OPENAI_API_KEY found, using placeholder contacts")
	}

	return g
}

// Source reports where the next contact will come from.
func (g *Generator) Source() string {
	switch {
	case len(g.mock) > 0:
		return SourceMock
	case g.useAI:
		return SourceAI
	default:
		return SourceStatic
	}
}

// Contact returns the next contact. It never fails; AI errors switch the
// generator to placeholders for the rest of the run.
func (g *Generator) Contact(ctx context.Context) ContactData {
	if len(g.mock) > 0 {
		row := g.mock[g.faker.Number(0, len(g.mock)-1)]
		return ContactData{FirstName: row.FirstName, LastName: row.LastName, Email: row.Email}
	}

	if g.useAI {
		if len(g.batch) == 0 {
			log.Printf("  ⏳ Generating %d contacts via AI...", g.batchSize)
			contacts, err := g.generateContacts(ctx, g.batchSize)
			if err != nil || len(contacts) == 0 {
				log.Printf("  ✗ AI generation failed, falling back to placeholder contacts: %v", err)
				g.useAI = false
				return g.staticContact()
			}
			log.Printf("  ✓ Generated %d contacts", len(contacts))
			g.batch = contacts
		}
		c := g.batch[0]
		g.batch = g.batch[1:]
		return c
	}

	return g.staticContact()
}

func (g *Generator) generateContacts(ctx context.Context, count int) ([]ContactData, error) {
	prompt := fmt.Sprintf(`Generate %d realistic fake business contacts for a CRM demo. Include:
- Decision makers (executives, directors)
- Day-to-day contacts (analysts, coordinators, engineers)
- A diverse, international mix of names

Return as JSON array with objects containing: firstname, lastname, email.
Emails must use the example.com domain.`, count)

	contacts, err := callOpenAI[[]ContactData](ctx, g.client, g.model, prompt)
	if err != nil {
		return nil, err
	}

	// Drop rows the model left incomplete
	valid := contacts[:0]
	for _, c := range contacts {
		if strings.TrimSpace(c.FirstName) != "" && strings.TrimSpace(c.LastName) != "" {
			valid = append(valid, c)
		}
	}
	return valid, nil
}

func callOpenAI[T any](ctx context.Context, client ChatCompleter, model, prompt string) (T, error) {
	var result T

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a data generator. Always respond with valid JSON only, no markdown or explanation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return result, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return result, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	return result, nil
}
