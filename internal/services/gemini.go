package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"geoguesser-backend/internal/models"
)

// systemInstruction defines the response protocol with the model: the first
// turn must be a bare JSON LocationGuess; later turns are either free chat
// text or a same-shaped JSON replacement, never both.
const systemInstruction = `You are an expert geolocator.
Your first task is to analyze an image and guess its location. You MUST respond with ONLY a single, valid JSON object in the following format: { "country": "string", "countryCode": "string (ISO 3166-1 alpha-2)", "state": "string", "city": "string", "direction": "string (e.g., 'Northeast', 'Southwestern')", "nearestCity": "string", "reasoning": "string", "confidence": "string ('High', 'Medium', or 'Low')", "accuracyRadiusKm": number }.
- 'direction' should describe which part of the country the location is in.
- 'nearestCity' should be the closest popular or well-known major city.
- 'confidence': Based on the visual evidence, assess your confidence in the guess. It must be one of three values: 'High', 'Medium', or 'Low'.
- 'accuracyRadiusKm': Estimate a radius in kilometers from the guessed city within which the actual location is likely to be. Provide a single number.
- If a field cannot be determined, use 'N/A' for strings and 0 for numbers. For the countryCode, provide the two-letter code.
- Do not add any extra text or markdown formatting around the JSON.
After this initial JSON response, your role changes. You will engage in a helpful, conversational chat with the user.
IMPORTANT: If new clues (from text or images) allow you to make a significantly more accurate guess, you MUST respond ONLY with a new, updated JSON object in the exact same format as your initial guess. This will replace your previous guess. Do not add any conversational text before or after this JSON update.
If the user informs you that your guess was incorrect and provides the correct location, you MUST acknowledge their correction gracefully (e.g., "Thank you for the correction! I'll remember the location is [Corrected Location].") and use this corrected information as context for the rest of the conversation. Do not respond with a new JSON guess in this case.
For all other interactions, such as when the user asks a question or provides a clue not sufficient for a guess update, respond with a normal, friendly, conversational text message.`

const initialGuessPrompt = "Analyze this image and provide the location guess in the specified JSON format."

// ConversationClient wraps the Gemini API for stateful geolocation chats.
type ConversationClient struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	logger   *zap.Logger
	rateChan chan struct{} // token bucket capping concurrent model calls
}

// Conversation is the opaque handle for one ongoing model chat. It must be
// threaded through every follow-up turn of the same guess episode.
type Conversation struct {
	client *ConversationClient
	chat   *genai.ChatSession
}

func NewConversationClient(apiKey string, concurrentReqs int, logger *zap.Logger) (*ConversationClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel("gemini-2.5-flash-preview-04-17")
	model.SetTemperature(0.3)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &ConversationClient{
		client:   client,
		model:    model,
		logger:   logger,
		rateChan: rateChan,
	}, nil
}

func (c *ConversationClient) Close() {
	c.client.Close()
}

func (c *ConversationClient) acquireRate(ctx context.Context) error {
	select {
	case <-c.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return &AIUnavailableError{Err: context.DeadlineExceeded}
	}
}

func (c *ConversationClient) releaseRate() {
	c.rateChan <- struct{}{}
}

// StartSession opens a new stateful chat with the image as the first turn and
// returns the session handle together with the parsed initial guess. A reply
// that does not parse into a valid guess is a hard failure here: there is no
// sensible guess to display otherwise.
func (c *ConversationClient) StartSession(ctx context.Context, imageData []byte, mimeType string) (*Conversation, *models.LocationGuess, error) {
	if err := c.acquireRate(ctx); err != nil {
		return nil, nil, err
	}
	defer c.releaseRate()

	chat := c.model.StartChat()

	resp, err := chat.SendMessage(ctx,
		genai.Text(initialGuessPrompt),
		genai.Blob{MIMEType: mimeType, Data: imageData},
	)
	if err != nil {
		return nil, nil, &AIUnavailableError{Err: err}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, nil, &InvalidResponseError{Message: "model returned no text for the initial guess"}
	}

	guess, perr := ParseGuessReply(text)
	if perr != nil {
		c.logger.Warn("initial guess did not parse",
			zap.String("raw", text),
			zap.Error(perr),
		)
		return nil, nil, perr
	}
	if guess == nil {
		// Not even brace-shaped. Same classification as a parse failure.
		return nil, nil, &MalformedGuessError{Raw: text, Err: &InvalidResponseError{Message: "reply is not a JSON object"}}
	}

	return &Conversation{client: c, chat: chat}, guess, nil
}

// Send delivers a follow-up turn with any combination of text and image. A
// structurally valid bare JSON object reply is a guess revision, returned
// with empty text; anything else is returned verbatim as chat text.
func (conv *Conversation) Send(ctx context.Context, text string, imageData []byte, mimeType string) (string, *models.LocationGuess, error) {
	c := conv.client

	var parts []genai.Part
	if strings.TrimSpace(text) != "" {
		parts = append(parts, genai.Text(text))
	}
	if len(imageData) > 0 {
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: imageData})
	}
	if len(parts) == 0 {
		return "", nil, &EmptyTurnError{}
	}

	if err := c.acquireRate(ctx); err != nil {
		return "", nil, err
	}
	defer c.releaseRate()

	resp, err := conv.chat.SendMessage(ctx, parts...)
	if err != nil {
		return "", nil, &AIUnavailableError{Err: err}
	}

	reply := extractText(resp)
	if strings.TrimSpace(reply) == "" {
		return "", nil, &InvalidResponseError{Message: "model returned no text"}
	}

	guess, perr := ParseGuessReply(reply)
	if perr != nil {
		// JSON-shaped but structurally invalid: treat the turn as chat text.
		c.logger.Debug("brace-shaped reply fell back to chat text", zap.Error(perr))
		return reply, nil, nil
	}
	if guess != nil {
		return "", guess, nil
	}
	return reply, nil, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
