package translation

import "errors"

// Common errors returned by the translation package
var (
	// ErrTranslationFailed is wrapped by every error a Translator returns
	ErrTranslationFailed = errors.New("translation failed")

	// ErrEmptyContent is returned when there is nothing to translate
	ErrEmptyContent = errors.New("content to translate cannot be empty")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during translation")

	// ErrInvalidConfig is returned when the translator configuration is invalid
	ErrInvalidConfig = errors.New("invalid translator configuration")
)
