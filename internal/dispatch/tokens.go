package dispatch

// EstimateTokens approximates the token count of a text. Latin text runs
// about 4 characters per token, Cyrillic about 2; a lightweight character
// count keeps the request log useful without a tokenizer dependency.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	cyrillic := 0
	total := 0
	for _, r := range text {
		total++
		if (r >= 'а' && r <= 'я') || (r >= 'А' && r <= 'Я') || r == 'ё' || r == 'Ё' {
			cyrillic++
		}
	}

	tokens := (total-cyrillic)/4 + cyrillic/2
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
