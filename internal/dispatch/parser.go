package dispatch

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Sol-I/stark-ai/internal/domain"
)

// Response shapes per provider family. Only the fields needed to extract
// the answer text are declared.

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type huggingFaceResponse []struct {
	GeneratedText string `json:"generated_text"`
}

var errEmptyAnswer = errors.New("response contained no answer text")

// parseAnswer extracts the normalized answer text from a provider response
// body according to the provider's declared parser format.
func parseAnswer(provider string, format domain.ParserFormat, body []byte) (string, error) {
	answer, err := extract(format, body)
	if err != nil {
		return "", &ParseError{Provider: provider, Format: string(format), Err: err}
	}
	if strings.TrimSpace(answer) == "" {
		return "", &ParseError{Provider: provider, Format: string(format), Err: errEmptyAnswer}
	}
	return answer, nil
}

func extract(format domain.ParserFormat, body []byte) (string, error) {
	switch format {
	case domain.ParserOpenAI:
		var resp openAIResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no choices in response")
		}
		return resp.Choices[0].Message.Content, nil

	case domain.ParserAnthropic:
		var resp anthropicResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", err
		}
		if len(resp.Content) == 0 {
			return "", errors.New("no content blocks in response")
		}
		return resp.Content[0].Text, nil

	case domain.ParserGoogle:
		var resp googleResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", errors.New("no candidates in response")
		}
		return resp.Candidates[0].Content.Parts[0].Text, nil

	case domain.ParserHuggingFace:
		var resp huggingFaceResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", err
		}
		if len(resp) == 0 {
			return "", errors.New("empty generation list")
		}
		return resp[0].GeneratedText, nil

	default:
		return "", errors.New("unknown parser format " + string(format))
	}
}
