package semantic

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	"github.com/EasyE-base/neural-command-layer/pkg/circuit"
	xhttp "github.com/EasyE-base/neural-command-layer/pkg/http"
	"github.com/EasyE-base/neural-command-layer/pkg/jsonutil"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

//go:embed command.schema.json
var commandSchema string

const defaultConfidence = 0.8

const systemPrompt = `You translate trading instructions into JSON. Reply with one JSON object and nothing else:
{"intent": one of BUY|SELL|QUERY|ALERT|ANALYZE|CONFIG|STOP|STATUS,
 "entities": {"symbol": ticker or null, "amount": dollar amount or null, "price": price or null,
              "quantity": share count or null, "timeframe": string or null, "condition": "above"|"below" or null},
 "confidence": number between 0 and 1,
 "needsConfirmation": boolean}`

type Config struct {
	BaseURL          string
	APIKey           string
	Model            string
	Timeout          time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Resolver asks an OpenAI-compatible chat completions endpoint to parse a
// command. Every failure comes back as *models.ParseError.
type Resolver struct {
	client   *xhttp.Client
	endpoint string
	model    string
	schema   *jsonschema.Schema
	breaker  *circuit.Breaker
	log      *logger.Logger
}

func New(cfg Config, l *logger.Logger) (*Resolver, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("semantic base url is required")
	}
	schema, err := compileSchema(commandSchema)
	if err != nil {
		return nil, fmt.Errorf("compile command schema: %w", err)
	}
	opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}
	if cfg.APIKey != "" {
		opts = append(opts, xhttp.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	log := l.With(logger.String("component", "semantic"))
	return &Resolver{
		client:   xhttp.NewClient(opts...),
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		model:    cfg.Model,
		schema:   schema,
		breaker: circuit.New("semantic", cfg.BreakerThreshold, cfg.BreakerCooldown,
			circuit.WithStateChange(func(name string, from, to circuit.State) {
				log.Warn("breaker state change", logger.String("from", from.String()), logger.String("to", to.String()))
			})),
		log: log,
	}, nil
}

func compileSchema(raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("command.schema.json", strings.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("command.schema.json")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

func (r *Resolver) Resolve(ctx context.Context, text string, _ models.RequestContext) (models.ParsedCommand, error) {
	var content string
	err := r.breaker.Do(func() error {
		var err error
		content, err = r.complete(ctx, text)
		return err
	})
	if errors.Is(err, circuit.ErrOpen) {
		return models.ParsedCommand{}, &models.ParseError{Reason: "upstream unavailable", Err: err}
	}
	if err != nil {
		return models.ParsedCommand{}, &models.ParseError{Reason: "completion failed", Err: err}
	}
	return r.parse(text, content)
}

func (r *Resolver) complete(ctx context.Context, text string) (string, error) {
	var raw []byte
	err := r.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    r.endpoint,
		Body: chatRequest{
			Model: r.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: text},
			},
		},
	}, &raw)
	if err != nil {
		return "", err
	}
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() || strings.TrimSpace(content.String()) == "" {
		return "", models.ErrEmptyResult
	}
	return content.String(), nil
}

func (r *Resolver) parse(text, content string) (models.ParsedCommand, error) {
	obj, ok := jsonutil.ExtractObject(content)
	if !ok {
		return models.ParsedCommand{}, &models.ParseError{Reason: "no json object in reply", Raw: content}
	}
	if !gjson.Valid(obj) {
		return models.ParsedCommand{}, &models.ParseError{Reason: "invalid json", Raw: obj}
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return models.ParsedCommand{}, &models.ParseError{Reason: "invalid json", Raw: obj, Err: err}
	}
	doc = sanitize(doc)
	if err := r.schema.Validate(doc); err != nil {
		return models.ParsedCommand{}, &models.ParseError{Reason: "schema validation failed", Raw: obj, Err: err}
	}

	norm, _ := json.Marshal(doc)
	res := gjson.ParseBytes(norm)
	intent, _ := models.ParseIntent(res.Get("intent").String())

	cmd := models.ParsedCommand{
		Intent:       intent,
		OriginalText: text,
		Confidence:   defaultConfidence,
		Entities: models.Entities{
			Symbol:    strings.ToUpper(strings.TrimSpace(res.Get("entities.symbol").String())),
			Timeframe: res.Get("entities.timeframe").String(),
			Condition: strings.ToLower(res.Get("entities.condition").String()),
		},
	}
	if v := res.Get("entities.amount"); v.Type == gjson.Number {
		f := v.Float()
		cmd.Entities.Amount = &f
	}
	if v := res.Get("entities.price"); v.Type == gjson.Number {
		f := v.Float()
		cmd.Entities.Price = &f
	}
	if v := res.Get("entities.quantity"); v.Type == gjson.Number {
		n := int(v.Int())
		cmd.Entities.Quantity = &n
	}
	if v := res.Get("confidence"); v.Type == gjson.Number {
		cmd.Confidence = models.Clamp(v.Float(), 0, 1)
	}
	cmd.NeedsConfirmation = res.Get("needsConfirmation").Bool() || intent.IsTrade()
	return cmd, nil
}

// sanitize upper-cases the intent and turns numeric strings such as
// "$5,000" into numbers before validation.
func sanitize(doc interface{}) interface{} {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return doc
	}
	if s, ok := m["intent"].(string); ok {
		m["intent"] = strings.ToUpper(strings.TrimSpace(s))
	}
	if s, ok := m["confidence"].(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			m["confidence"] = f
		}
	}
	ents, ok := m["entities"].(map[string]interface{})
	if !ok {
		return m
	}
	for _, key := range []string{"amount", "price", "quantity"} {
		s, ok := ents[key].(string)
		if !ok {
			continue
		}
		clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
		if clean == "" {
			ents[key] = nil
			continue
		}
		if f, err := strconv.ParseFloat(clean, 64); err == nil {
			ents[key] = f
		}
	}
	return m
}
