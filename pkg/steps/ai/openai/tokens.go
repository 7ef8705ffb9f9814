package openai

import (
	"sync"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

// per-message framing overhead of the chat format
const tokensPerMessage = 4

var (
	codecsMu sync.Mutex
	codecs   = map[string]tokenizer.Codec{}
)

func getCodec(model string) (tokenizer.Codec, error) {
	codecsMu.Lock()
	defer codecsMu.Unlock()

	if c, ok := codecs[model]; ok {
		return c, nil
	}
	c, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		c, err = tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, err
		}
	}
	codecs[model] = c
	return c, nil
}

// CountPromptTokens estimates the prompt size of messages for model. Unknown
// models are counted with cl100k_base. Returns 0 if no codec is available.
func CountPromptTokens(model string, messages []conversation.ChatMessage) int {
	codec, err := getCodec(model)
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("could not load tokenizer")
		return 0
	}

	total := 3
	for _, m := range messages {
		ids, _, err := codec.Encode(m.Content)
		if err != nil {
			log.Warn().Err(err).Str("model", model).Msg("could not encode message")
			return 0
		}
		total += tokensPerMessage + len(ids)
	}
	return total
}

// CountTokens counts the tokens of a raw text for model.
func CountTokens(model string, text string) (int, error) {
	codec, err := getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
